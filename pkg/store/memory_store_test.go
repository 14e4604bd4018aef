package store

import (
	"testing"
	"time"

	"shelfgate/pkg/domain"
	"shelfgate/pkg/optional"
)

func intPtr(v int) *int { return &v }

func seedBook(t *testing.T, s *MemoryStore, id string) domain.Book {
	t.Helper()
	b := domain.Book{
		ID:         id,
		Name:       "Title " + id,
		Author:     "Author " + id,
		SizeBytes:  1024,
		StorageKey: "books/" + id + ".zip",
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.UpsertBook(b, nil, nil); err != nil {
		t.Fatalf("seed upsert: %v", err)
	}
	return b
}

func TestUpsertCreatesThenMerges(t *testing.T) {
	s := NewMemoryStore()
	first := domain.Book{
		ID:         "dune",
		Name:       "Dune",
		Author:     "guessed-from-filename",
		SizeBytes:  100,
		StorageKey: "books/dune.zip",
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.UpsertBook(first, nil, nil); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	// Admin fixes the author via the API.
	if _, ok, err := s.UpdateBook("dune", BookPatch{Author: optional.Of("Frank Herbert")}); err != nil || !ok {
		t.Fatalf("update: ok=%v err=%v", ok, err)
	}

	// Re-ingest without tags: size and key refresh, the admin edit survives.
	second := first
	second.SizeBytes = 2048
	second.Author = "guessed-again"
	if err := s.UpsertBook(second, nil, nil); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}
	got, ok, err := s.GetBook("dune")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got.SizeBytes != 2048 {
		t.Fatalf("size = %d, want refreshed 2048", got.SizeBytes)
	}
	if got.Author != "Frank Herbert" {
		t.Fatalf("author = %q, want admin edit preserved", got.Author)
	}
}

func TestUpsertTaggedColumnsOverride(t *testing.T) {
	s := NewMemoryStore()
	seedBook(t, s, "dune")

	tagged := domain.Book{
		ID:          "dune",
		Name:        "ignored",
		Author:      "Frank Herbert",
		SeriesName:  "Dune Saga",
		SeriesOrder: intPtr(1),
		SizeBytes:   4096,
		StorageKey:  "books/dune.zip",
	}
	tags := map[string]string{"author": "Frank Herbert", "series_name": "Dune Saga", "series_order": "1"}
	if err := s.UpsertBook(tagged, tags, []string{ColAuthor, ColSeriesName, ColSeriesOrder}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, _, _ := s.GetBook("dune")
	if got.Author != "Frank Herbert" || got.SeriesName != "Dune Saga" {
		t.Fatalf("tagged columns not applied: %+v", got)
	}
	if got.SeriesOrder == nil || *got.SeriesOrder != 1 {
		t.Fatalf("series order = %v, want 1", got.SeriesOrder)
	}
	if got.Name != "Title dune" {
		t.Fatalf("name = %q, untagged name must not be overwritten", got.Name)
	}
}

func TestUpdateBookClearAndOmit(t *testing.T) {
	s := NewMemoryStore()
	seedBook(t, s, "dune")
	if _, ok, err := s.UpdateBook("dune", BookPatch{
		SeriesName:  optional.Of("Dune Saga"),
		SeriesOrder: optional.Of(3),
	}); err != nil || !ok {
		t.Fatalf("update: ok=%v err=%v", ok, err)
	}

	// Omitted fields untouched, null clears.
	got, ok, err := s.UpdateBook("dune", BookPatch{SeriesOrder: optional.Null[int]()})
	if err != nil || !ok {
		t.Fatalf("clear: ok=%v err=%v", ok, err)
	}
	if got.SeriesOrder != nil {
		t.Fatalf("series order = %v, want cleared", got.SeriesOrder)
	}
	if got.SeriesName != "Dune Saga" {
		t.Fatalf("series name = %q, omitted field must survive", got.SeriesName)
	}
}

func TestUpdateBookMissing(t *testing.T) {
	s := NewMemoryStore()
	if _, ok, err := s.UpdateBook("ghost", BookPatch{Name: optional.Of("x")}); err != nil || ok {
		t.Fatalf("ok=%v err=%v, want not found without error", ok, err)
	}
}

func TestStatusIsolationPerUser(t *testing.T) {
	s := NewMemoryStore()
	seedBook(t, s, "dune")
	if err := s.SetStatus("alice", "dune", true); err != nil {
		t.Fatalf("set: %v", err)
	}

	aliceStatus, err := s.GetStatus("alice", "dune")
	if err != nil || !aliceStatus.Read {
		t.Fatalf("alice read = %v err = %v", aliceStatus.Read, err)
	}
	bobStatus, err := s.GetStatus("bob", "dune")
	if err != nil || bobStatus.Read {
		t.Fatalf("bob read = %v err = %v, want default false", bobStatus.Read, err)
	}

	flags, err := s.ListStatuses("alice")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !flags["dune"] {
		t.Fatal("alice flag missing from listing")
	}
}

func TestDeleteBookCascade(t *testing.T) {
	s := NewMemoryStore()
	seedBook(t, s, "dune")
	seedBook(t, s, "hobbit")
	_ = s.SetStatus("alice", "dune", true)
	_ = s.SetStatus("bob", "dune", false)
	_ = s.SetStatus("alice", "hobbit", true)

	n, err := s.DeleteStatusesForBook("dune")
	if err != nil || n != 2 {
		t.Fatalf("deleted %d status rows, err=%v, want 2", n, err)
	}
	if ok, err := s.DeleteBook("dune"); err != nil || !ok {
		t.Fatalf("delete: ok=%v err=%v", ok, err)
	}
	if _, ok, _ := s.GetBook("dune"); ok {
		t.Fatal("book still present after delete")
	}
	flags, _ := s.ListStatuses("alice")
	if _, ok := flags["dune"]; ok {
		t.Fatal("dune status row survived cascade")
	}
	if !flags["hobbit"] {
		t.Fatal("unrelated status row lost")
	}
}

func TestListBooksNewestFirst(t *testing.T) {
	s := NewMemoryStore()
	older := domain.Book{ID: "a", Name: "A", CreatedAt: time.Now().UTC().Add(-time.Hour)}
	newer := domain.Book{ID: "b", Name: "B", CreatedAt: time.Now().UTC()}
	_ = s.UpsertBook(older, nil, nil)
	_ = s.UpsertBook(newer, nil, nil)

	books, err := s.ListBooks()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(books) != 2 || books[0].ID != "b" {
		t.Fatalf("order = %+v, want newest first", books)
	}
}

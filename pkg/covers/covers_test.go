package covers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"shelfgate/pkg/optional"
	"shelfgate/pkg/store"
)

func newVolumesServer(t *testing.T, body string, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/volumes" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestResolvePrefersLargestImage(t *testing.T) {
	srv := newVolumesServer(t, `{"items":[{"volumeInfo":{"imageLinks":{
		"smallThumbnail":"http://img.test/s.jpg",
		"thumbnail":"http://img.test/t.jpg",
		"medium":"http://img.test/m.jpg"}}}]}`, http.StatusOK)

	r := NewResolverWithBaseURL(srv.URL)
	got, ok := r.Resolve(context.Background(), "Dune", "Herbert")
	if !ok {
		t.Fatal("expected a cover")
	}
	if got != "https://img.test/m.jpg" {
		t.Fatalf("cover = %q, want https upgrade of medium", got)
	}
}

func TestResolveFallsBackToThumbnail(t *testing.T) {
	srv := newVolumesServer(t, `{"items":[{"volumeInfo":{"imageLinks":{
		"smallThumbnail":"https://img.test/s.jpg",
		"thumbnail":"https://img.test/t.jpg"}}}]}`, http.StatusOK)

	r := NewResolverWithBaseURL(srv.URL)
	got, ok := r.Resolve(context.Background(), "Dune", "")
	if !ok || got != "https://img.test/t.jpg" {
		t.Fatalf("cover = %q, ok = %v", got, ok)
	}
}

func TestResolveNoMatch(t *testing.T) {
	srv := newVolumesServer(t, `{"items":[]}`, http.StatusOK)
	r := NewResolverWithBaseURL(srv.URL)
	if _, ok := r.Resolve(context.Background(), "Unknown", ""); ok {
		t.Fatal("expected no cover")
	}
}

func TestResolveUpstreamErrorDegrades(t *testing.T) {
	srv := newVolumesServer(t, `rate limited`, http.StatusTooManyRequests)
	r := NewResolverWithBaseURL(srv.URL)
	if _, ok := r.Resolve(context.Background(), "Dune", ""); ok {
		t.Fatal("expected no cover on upstream error")
	}
}

type stubSource struct {
	url string
	ok  bool
}

func (s stubSource) Resolve(context.Context, string, string) (string, bool) { return s.url, s.ok }

func TestUpdateOnAuthorChange(t *testing.T) {
	patch := store.BookPatch{}
	UpdateOnAuthorChange(context.Background(), stubSource{url: "https://img.test/c.jpg", ok: true}, "Old", "New", "Dune", &patch)
	if v, ok := patch.CoverImageURL.Value(); !ok || v != "https://img.test/c.jpg" {
		t.Fatalf("cover patch = %v, %v", v, ok)
	}
}

func TestUpdateOnAuthorChangeClearsOnMiss(t *testing.T) {
	patch := store.BookPatch{}
	UpdateOnAuthorChange(context.Background(), stubSource{}, "Old", "New", "Dune", &patch)
	if !patch.CoverImageURL.IsNull() {
		t.Fatal("expected cover cleared when no match found")
	}
}

func TestUpdateOnSameAuthorDoesNothing(t *testing.T) {
	patch := store.BookPatch{}
	UpdateOnAuthorChange(context.Background(), stubSource{url: "https://img.test/c.jpg", ok: true}, "Same", "Same", "Dune", &patch)
	if patch.CoverImageURL.Present() {
		t.Fatal("unchanged author must not touch the cover")
	}
	UpdateOnAuthorChange(context.Background(), stubSource{url: "https://img.test/c.jpg", ok: true}, "Old", "", "Dune", &patch)
	if patch.CoverImageURL.Present() {
		t.Fatal("empty new author must not touch the cover")
	}
}

func TestOptionalFieldInteraction(t *testing.T) {
	patch := store.BookPatch{CoverImageURL: optional.Of("https://img.test/keep.jpg")}
	UpdateOnAuthorChange(context.Background(), stubSource{}, "Same", "Same", "Dune", &patch)
	if v, ok := patch.CoverImageURL.Value(); !ok || v != "https://img.test/keep.jpg" {
		t.Fatal("pre-set cover must survive a no-op author change")
	}
}

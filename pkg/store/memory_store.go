package store

import (
	"sort"
	"sync"
	"time"

	"shelfgate/pkg/domain"
)

type statusKey struct {
	userID string
	bookID string
}

// MemoryStore keeps catalog and status rows in-process. It mirrors the
// merge semantics of GormStore and is used by tests.
type MemoryStore struct {
	mu       sync.RWMutex
	books    map[string]domain.Book
	tags     map[string]map[string]string
	statuses map[statusKey]domain.UserBookStatus
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		books:    make(map[string]domain.Book),
		tags:     make(map[string]map[string]string),
		statuses: make(map[statusKey]domain.UserBookStatus),
	}
}

// GetBook returns a book by ID.
func (m *MemoryStore) GetBook(id string) (domain.Book, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.books[id]
	return b, ok, nil
}

// ListBooks returns all books, most recently created first.
func (m *MemoryStore) ListBooks() ([]domain.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Book, 0, len(m.books))
	for _, b := range m.books {
		res = append(res, b)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}

// UpsertBook creates the row or merges only the explicitly supplied columns.
func (m *MemoryStore) UpsertBook(b domain.Book, rawTags map[string]string, taggedCols []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.books[b.ID]
	if !ok {
		m.books[b.ID] = b
		m.tags[b.ID] = rawTags
		return nil
	}
	existing.SizeBytes = b.SizeBytes
	existing.StorageKey = b.StorageKey
	if b.CoverImageURL != "" {
		existing.CoverImageURL = b.CoverImageURL
	}
	for _, col := range taggedCols {
		switch col {
		case ColAuthor:
			existing.Author = b.Author
		case ColSeriesName:
			existing.SeriesName = b.SeriesName
		case ColSeriesOrder:
			existing.SeriesOrder = b.SeriesOrder
		}
	}
	m.books[b.ID] = existing
	m.tags[b.ID] = rawTags
	return nil
}

// UpdateBook applies a partial merge.
func (m *MemoryStore) UpdateBook(id string, patch BookPatch) (domain.Book, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.books[id]
	if !ok {
		return domain.Book{}, false, nil
	}
	if patch.Name.Present() {
		v, _ := patch.Name.Value()
		b.Name = v
	}
	if patch.Author.Present() {
		v, _ := patch.Author.Value()
		b.Author = v
	}
	if patch.SeriesName.Present() {
		v, _ := patch.SeriesName.Value()
		b.SeriesName = v
	}
	if patch.SeriesOrder.Present() {
		if v, ok := patch.SeriesOrder.Value(); ok {
			b.SeriesOrder = &v
		} else {
			b.SeriesOrder = nil
		}
	}
	if patch.CoverImageURL.Present() {
		v, _ := patch.CoverImageURL.Value()
		b.CoverImageURL = v
	}
	m.books[id] = b
	return b, true, nil
}

// DeleteBook removes the catalog row.
func (m *MemoryStore) DeleteBook(id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.books[id]
	delete(m.books, id)
	delete(m.tags, id)
	return ok, nil
}

// GetStatus returns the user's row for a book, defaulting to read=false.
func (m *MemoryStore) GetStatus(userID, bookID string) (domain.UserBookStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if st, ok := m.statuses[statusKey{userID, bookID}]; ok {
		return st, nil
	}
	return domain.UserBookStatus{UserID: userID, BookID: bookID}, nil
}

// ListStatuses returns all read flags for one user.
func (m *MemoryStore) ListStatuses(userID string) (map[string]bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]bool)
	for k, st := range m.statuses {
		if k.userID == userID {
			out[k.bookID] = st.Read
		}
	}
	return out, nil
}

// SetStatus lazily creates or updates the user's row.
func (m *MemoryStore) SetStatus(userID, bookID string, read bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[statusKey{userID, bookID}] = domain.UserBookStatus{
		UserID:    userID,
		BookID:    bookID,
		Read:      read,
		UpdatedAt: time.Now().UTC(),
	}
	return nil
}

// DeleteStatusesForBook removes every user's row for the book.
func (m *MemoryStore) DeleteStatusesForBook(bookID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k := range m.statuses {
		if k.bookID == bookID {
			delete(m.statuses, k)
			n++
		}
	}
	return n, nil
}

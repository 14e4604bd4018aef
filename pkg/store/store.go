package store

import (
	"shelfgate/pkg/domain"
	"shelfgate/pkg/optional"
)

// Column names that ingestion may mark as explicitly supplied by object tags.
const (
	ColAuthor      = "author"
	ColSeriesName  = "series_name"
	ColSeriesOrder = "series_order"
)

// BookPatch is a partial update of a catalog row. Each field is tri-state:
// absent leaves the column untouched, null clears it, a value overwrites it.
type BookPatch struct {
	Name          optional.Field[string]
	Author        optional.Field[string]
	SeriesName    optional.Field[string]
	SeriesOrder   optional.Field[int]
	CoverImageURL optional.Field[string]
}

// Empty reports whether the patch touches no columns.
func (p BookPatch) Empty() bool {
	return !p.Name.Present() && !p.Author.Present() && !p.SeriesName.Present() &&
		!p.SeriesOrder.Present() && !p.CoverImageURL.Present()
}

// CatalogStore is the global book table, one row per item.
type CatalogStore interface {
	GetBook(id string) (domain.Book, bool, error)
	ListBooks() ([]domain.Book, error)
	// UpsertBook creates the row when absent. When the row exists it assigns
	// only size, storage key, raw tags, a freshly resolved cover, and the
	// columns listed in taggedCols; everything else is left untouched so a
	// re-upload never reverts admin-edited metadata.
	UpsertBook(b domain.Book, rawTags map[string]string, taggedCols []string) error
	// UpdateBook applies a partial merge and returns the updated row.
	// found=false when no row with that id exists.
	UpdateBook(id string, patch BookPatch) (domain.Book, bool, error)
	DeleteBook(id string) (bool, error)
}

// StatusStore is the per-user read-flag table keyed by (userId, bookId).
type StatusStore interface {
	// GetStatus returns read=false when no row exists.
	GetStatus(userID, bookID string) (domain.UserBookStatus, error)
	// ListStatuses returns the user's bookId -> read map.
	ListStatuses(userID string) (map[string]bool, error)
	SetStatus(userID, bookID string, read bool) error
	// DeleteStatusesForBook removes every user's row for the book and
	// returns how many rows were removed.
	DeleteStatusesForBook(bookID string) (int, error)
}

// Store combines both tables; GormStore and MemoryStore implement it.
type Store interface {
	CatalogStore
	StatusStore
}

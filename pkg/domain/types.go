package domain

import "time"

// Book is a catalog item shared by all users. The ingest pipeline creates it;
// request handlers mutate the metadata fields.
type Book struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Author        string    `json:"author,omitempty"`
	SeriesName    string    `json:"series_name,omitempty"`
	SeriesOrder   *int      `json:"series_order,omitempty"`
	SizeBytes     int64     `json:"size"`
	StorageKey    string    `json:"-"`
	CoverImageURL string    `json:"coverImageUrl,omitempty"`
	CreatedAt     time.Time `json:"created"`
}

// UserBookStatus holds the per-user mutable state for one book.
// Absence of a row is equivalent to read=false.
type UserBookStatus struct {
	UserID    string    `json:"userId"`
	BookID    string    `json:"bookId"`
	Read      bool      `json:"read"`
	UpdatedAt time.Time `json:"updated"`
}

// BookView is a Book merged with the requesting user's read status.
type BookView struct {
	Book
	Read bool `json:"read"`
}

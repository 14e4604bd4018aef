package store

import (
	"time"

	"gorm.io/datatypes"

	"shelfgate/pkg/domain"
)

// GORM models used for persistence.
type BookModel struct {
	ID            string `gorm:"primaryKey"`
	Name          string `gorm:"not null"`
	Author        *string
	SeriesName    *string
	SeriesOrder   *int
	SizeBytes     int64  `gorm:"not null"`
	StorageKey    string `gorm:"not null"`
	CoverImageURL *string
	SourceTags    datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt     time.Time      `gorm:"not null"`
	UpdatedAt     time.Time
}

type UserBookStatusModel struct {
	UserID    string `gorm:"primaryKey"`
	BookID    string `gorm:"primaryKey;index"`
	Read      bool   `gorm:"not null"`
	UpdatedAt time.Time
}

func bookToModel(b domain.Book) BookModel {
	m := BookModel{
		ID:          b.ID,
		Name:        b.Name,
		SeriesOrder: b.SeriesOrder,
		SizeBytes:   b.SizeBytes,
		StorageKey:  b.StorageKey,
		CreatedAt:   b.CreatedAt,
	}
	if b.Author != "" {
		m.Author = &b.Author
	}
	if b.SeriesName != "" {
		m.SeriesName = &b.SeriesName
	}
	if b.CoverImageURL != "" {
		m.CoverImageURL = &b.CoverImageURL
	}
	return m
}

func bookFromModel(m BookModel) domain.Book {
	b := domain.Book{
		ID:          m.ID,
		Name:        m.Name,
		SeriesOrder: m.SeriesOrder,
		SizeBytes:   m.SizeBytes,
		StorageKey:  m.StorageKey,
		CreatedAt:   m.CreatedAt,
	}
	if m.Author != nil {
		b.Author = *m.Author
	}
	if m.SeriesName != nil {
		b.SeriesName = *m.SeriesName
	}
	if m.CoverImageURL != nil {
		b.CoverImageURL = *m.CoverImageURL
	}
	return b
}

package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"shelfgate/pkg/domain"
)

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.AutoMigrate(&BookModel{}, &UserBookStatusModel{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

// GetBook returns a book by ID.
func (s *GormStore) GetBook(id string) (domain.Book, bool, error) {
	var model BookModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Book{}, false, nil
		}
		return domain.Book{}, false, err
	}
	return bookFromModel(model), true, nil
}

// ListBooks returns all books, most recently created first.
func (s *GormStore) ListBooks() ([]domain.Book, error) {
	var models []BookModel
	if err := s.db.Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Book, 0, len(models))
	for _, m := range models {
		res = append(res, bookFromModel(m))
	}
	return res, nil
}

// UpsertBook creates the row, or merges only the explicitly supplied columns
// into an existing one.
func (s *GormStore) UpsertBook(b domain.Book, rawTags map[string]string, taggedCols []string) error {
	model := bookToModel(b)
	if len(rawTags) > 0 {
		raw, err := json.Marshal(rawTags)
		if err != nil {
			return fmt.Errorf("encode tags: %w", err)
		}
		model.SourceTags = raw
	}
	assign := []string{"size_bytes", "storage_key", "source_tags", "updated_at"}
	if b.CoverImageURL != "" {
		assign = append(assign, "cover_image_url")
	}
	assign = append(assign, taggedCols...)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(assign),
	}).Create(&model).Error
}

// UpdateBook applies a partial merge. Null patch fields clear the column.
func (s *GormStore) UpdateBook(id string, patch BookPatch) (domain.Book, bool, error) {
	updates := map[string]any{}
	if patch.Name.Present() {
		if v, ok := patch.Name.Value(); ok {
			updates["name"] = v
		} else {
			updates["name"] = nil
		}
	}
	if patch.Author.Present() {
		if v, ok := patch.Author.Value(); ok {
			updates["author"] = v
		} else {
			updates["author"] = nil
		}
	}
	if patch.SeriesName.Present() {
		if v, ok := patch.SeriesName.Value(); ok {
			updates["series_name"] = v
		} else {
			updates["series_name"] = nil
		}
	}
	if patch.SeriesOrder.Present() {
		if v, ok := patch.SeriesOrder.Value(); ok {
			updates["series_order"] = v
		} else {
			updates["series_order"] = nil
		}
	}
	if patch.CoverImageURL.Present() {
		if v, ok := patch.CoverImageURL.Value(); ok {
			updates["cover_image_url"] = v
		} else {
			updates["cover_image_url"] = nil
		}
	}

	var model BookModel
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&model, "id = ?", id).Error; err != nil {
			return err
		}
		if len(updates) == 0 {
			return nil
		}
		updates["updated_at"] = time.Now().UTC()
		if err := tx.Model(&BookModel{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return err
		}
		return tx.First(&model, "id = ?", id).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Book{}, false, nil
		}
		return domain.Book{}, false, err
	}
	return bookFromModel(model), true, nil
}

// DeleteBook removes the catalog row.
func (s *GormStore) DeleteBook(id string) (bool, error) {
	res := s.db.Delete(&BookModel{}, "id = ?", id)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// GetStatus returns the user's row for a book, defaulting to read=false.
func (s *GormStore) GetStatus(userID, bookID string) (domain.UserBookStatus, error) {
	var model UserBookStatusModel
	err := s.db.First(&model, "user_id = ? AND book_id = ?", userID, bookID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.UserBookStatus{UserID: userID, BookID: bookID}, nil
		}
		return domain.UserBookStatus{}, err
	}
	return domain.UserBookStatus{
		UserID:    model.UserID,
		BookID:    model.BookID,
		Read:      model.Read,
		UpdatedAt: model.UpdatedAt,
	}, nil
}

// ListStatuses returns all read flags for one user.
func (s *GormStore) ListStatuses(userID string) (map[string]bool, error) {
	var models []UserBookStatusModel
	if err := s.db.Find(&models, "user_id = ?", userID).Error; err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(models))
	for _, m := range models {
		out[m.BookID] = m.Read
	}
	return out, nil
}

// SetStatus lazily creates or updates the user's row.
func (s *GormStore) SetStatus(userID, bookID string, read bool) error {
	model := UserBookStatusModel{
		UserID:    userID,
		BookID:    bookID,
		Read:      read,
		UpdatedAt: time.Now().UTC(),
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "book_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"read", "updated_at"}),
	}).Create(&model).Error
}

// DeleteStatusesForBook removes every user's row for the book.
func (s *GormStore) DeleteStatusesForBook(bookID string) (int, error) {
	res := s.db.Delete(&UserBookStatusModel{}, "book_id = ?", bookID)
	if res.Error != nil {
		return 0, res.Error
	}
	return int(res.RowsAffected), nil
}

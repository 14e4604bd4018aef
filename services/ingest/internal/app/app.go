// Package app implements the ingestion pipeline: object-created events come
// in, catalog rows come out. Each record in a notification is processed
// independently so one bad object never aborts its siblings.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strconv"
	"strings"

	"shelfgate/pkg/covers"
	"shelfgate/pkg/domain"
	"shelfgate/pkg/storage"
	"shelfgate/pkg/store"
)

// Config holds runtime configuration for the pipeline.
type Config struct {
	DatabaseURL string
	Store       store.CatalogStore
	Objects     storage.ObjectStore
	Covers      covers.Source
}

// App processes bucket notifications into catalog upserts.
type App struct {
	store   store.CatalogStore
	objects storage.ObjectStore
	covers  covers.Source
}

// New constructs the pipeline.
func New(cfg Config) (*App, error) {
	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}
	if cfg.Objects == nil {
		return nil, fmt.Errorf("object store required")
	}
	coverSource := cfg.Covers
	if coverSource == nil {
		coverSource = covers.NewResolver()
	}
	return &App{store: dataStore, objects: cfg.Objects, covers: coverSource}, nil
}

// HandleNotification processes every record in the notification and returns
// how many were ingested. Per-record failures are logged, not propagated.
func (a *App) HandleNotification(ctx context.Context, n Notification) int {
	processed := 0
	for _, rec := range n.Records {
		if err := a.processRecord(ctx, rec); err != nil {
			slog.Error("ingest record failed", "key", rec.S3.Object.Key, "err", err)
			continue
		}
		processed++
	}
	return processed
}

func (a *App) processRecord(ctx context.Context, rec Record) error {
	key := decodeKey(rec.S3.Object.Key)
	if rec.S3.Bucket.Name == "" || key == "" {
		return fmt.Errorf("invalid event record: bucket=%q key=%q", rec.S3.Bucket.Name, rec.S3.Object.Key)
	}
	size := rec.S3.Object.Size
	if isFolderMarker(key, size) {
		slog.Debug("skipping folder marker", "key", key)
		return nil
	}

	filename := path.Base(key)
	id := strings.TrimSuffix(filename, path.Ext(filename))
	if id == "" {
		return fmt.Errorf("cannot derive id from key %q", key)
	}

	book := domain.Book{
		ID:         id,
		SizeBytes:  size,
		StorageKey: key,
		CreatedAt:  rec.EventTime.UTC(),
	}

	// Filename is the metadata fallback: "Author - Title", else a cleaned-up
	// title alone.
	if before, after, found := strings.Cut(id, " - "); found {
		book.Author = strings.TrimSpace(before)
		book.Name = strings.TrimSpace(after)
	} else {
		book.Name = friendlyName(id)
	}

	// Object tags, when readable, override the filename guesses.
	var taggedCols []string
	tags, err := a.objects.GetTags(ctx, key)
	if err != nil {
		slog.Warn("reading object tags failed", "key", key, "err", err)
		tags = nil
	}
	if author := strings.TrimSpace(tags["author"]); author != "" {
		book.Author = author
		taggedCols = append(taggedCols, store.ColAuthor)
	}
	if seriesName := strings.TrimSpace(tags["series_name"]); seriesName != "" {
		book.SeriesName = seriesName
		taggedCols = append(taggedCols, store.ColSeriesName)
	}
	if raw := strings.TrimSpace(tags["series_order"]); raw != "" {
		if order, err := strconv.Atoi(raw); err == nil {
			book.SeriesOrder = &order
			taggedCols = append(taggedCols, store.ColSeriesOrder)
		} else {
			slog.Warn("invalid series_order tag", "key", key, "value", raw)
		}
	}

	if coverURL, ok := a.covers.Resolve(ctx, book.Name, book.Author); ok {
		book.CoverImageURL = coverURL
	}

	if err := a.store.UpsertBook(book, tags, taggedCols); err != nil {
		return fmt.Errorf("upsert book %q: %w", id, err)
	}
	slog.Info("book ingested", "book_id", id, "key", key, "size", size, "tagged", taggedCols)
	return nil
}

package app

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strconv"
	"strings"
	"time"

	"shelfgate/internal/identity"
	"shelfgate/pkg/covers"
	"shelfgate/pkg/domain"
	"shelfgate/pkg/optional"
	"shelfgate/pkg/storage"
	"shelfgate/pkg/store"
)

// Presigned URLs for both download and upload expire after one hour.
const urlExpiry = time.Hour

// Config holds runtime configuration for the core application.
type Config struct {
	DatabaseURL string
	BooksPrefix string
	Store       store.Store
	Objects     storage.ObjectStore
	Covers      covers.Source
}

// App is the core application service wiring stores and cover resolution
// behind the request handlers. It keeps no per-request state.
type App struct {
	store   store.Store
	objects storage.ObjectStore
	covers  covers.Source
	prefix  string
}

// New constructs the application.
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
	prefix := cfg.BooksPrefix
	if prefix == "" {
		prefix = "books/"
	}
	return &App{
		store:   dataStore,
		objects: cfg.Objects,
		covers:  coverSource,
		prefix:  prefix,
	}, nil
}

// ListResult is the catalog merged with the caller's read flags.
type ListResult struct {
	Books   []domain.BookView `json:"books"`
	IsAdmin bool              `json:"isAdmin"`
}

// ListBooks returns every catalog item with the caller's read status.
func (a *App) ListBooks(ctx context.Context, ident identity.Identity) (ListResult, error) {
	books, err := a.store.ListBooks()
	if err != nil {
		return ListResult{}, fmt.Errorf("list books: %w", err)
	}
	readStatuses, err := a.store.ListStatuses(ident.SubjectID)
	if err != nil {
		// Read flags degrade to false rather than failing the listing.
		slog.Warn("fetch read statuses failed", "user_id", ident.SubjectID, "err", err)
		readStatuses = nil
	}
	views := make([]domain.BookView, 0, len(books))
	for _, b := range books {
		views = append(views, domain.BookView{Book: b, Read: readStatuses[b.ID]})
	}
	return ListResult{Books: views, IsAdmin: ident.IsAdmin}, nil
}

// BookDetail is one book plus a time-limited download URL.
type BookDetail struct {
	domain.BookView
	DownloadURL string `json:"downloadUrl"`
	ExpiresIn   int    `json:"expiresIn"`
}

// GetBook returns one book, the caller's read status, and a presigned
// download URL valid for one hour.
func (a *App) GetBook(ctx context.Context, ident identity.Identity, id string) (BookDetail, error) {
	book, ok, err := a.store.GetBook(id)
	if err != nil {
		return BookDetail{}, fmt.Errorf("get book: %w", err)
	}
	if !ok {
		return BookDetail{}, ErrNotFound
	}
	status, err := a.store.GetStatus(ident.SubjectID, id)
	if err != nil {
		slog.Warn("fetch read status failed", "user_id", ident.SubjectID, "book_id", id, "err", err)
	}
	downloadURL, err := a.objects.PresignGet(ctx, book.StorageKey, urlExpiry)
	if err != nil {
		return BookDetail{}, fmt.Errorf("%w: presign download: %v", ErrUpstream, err)
	}
	return BookDetail{
		BookView:    domain.BookView{Book: book, Read: status.Read},
		DownloadURL: downloadURL,
		ExpiresIn:   int(urlExpiry.Seconds()),
	}, nil
}

// UpdateBook splits the request into catalog fields (shared, any
// authenticated user may edit) and the caller's own read flag.
func (a *App) UpdateBook(ctx context.Context, ident identity.Identity, id string, req UpdateRequest) (domain.BookView, error) {
	if req.empty() {
		return domain.BookView{}, validationf("no valid fields to update")
	}
	if err := req.validate(); err != nil {
		return domain.BookView{}, err
	}

	book, ok, err := a.store.GetBook(id)
	if err != nil {
		return domain.BookView{}, fmt.Errorf("get book: %w", err)
	}
	if !ok {
		return domain.BookView{}, ErrNotFound
	}

	read := false
	if v, ok := req.Read.Value(); ok {
		if err := a.store.SetStatus(ident.SubjectID, id, v); err != nil {
			return domain.BookView{}, fmt.Errorf("set read status: %w", err)
		}
		read = v
	} else {
		status, err := a.store.GetStatus(ident.SubjectID, id)
		if err == nil {
			read = status.Read
		}
	}

	patch := store.BookPatch{
		Name:        req.Name,
		Author:      req.Author,
		SeriesName:  req.SeriesName,
		SeriesOrder: req.SeriesOrder,
	}
	if patch.Empty() {
		return domain.BookView{Book: book, Read: read}, nil
	}
	if newAuthor, ok := req.Author.Value(); ok {
		title := book.Name
		if title == "" {
			title = id
		}
		covers.UpdateOnAuthorChange(ctx, a.covers, book.Author, newAuthor, title, &patch)
	}
	updated, found, err := a.store.UpdateBook(id, patch)
	if err != nil {
		return domain.BookView{}, fmt.Errorf("update book: %w", err)
	}
	if !found {
		return domain.BookView{}, ErrNotFound
	}
	return domain.BookView{Book: updated, Read: read}, nil
}

// DeleteBook removes the stored object, every user's status row, and the
// catalog record, in that order. Object-store failures are logged and do not
// block the metadata cleanup; a dangling object is acceptable, a catalog row
// pointing at a missing object is not.
func (a *App) DeleteBook(ctx context.Context, ident identity.Identity, id string) error {
	if !ident.IsAdmin {
		return ErrForbidden
	}
	book, ok, err := a.store.GetBook(id)
	if err != nil {
		return fmt.Errorf("get book: %w", err)
	}
	if !ok {
		return ErrNotFound
	}

	if book.StorageKey == "" {
		slog.Warn("book has no storage key", "book_id", id)
	} else if err := a.objects.Delete(ctx, book.StorageKey); err != nil {
		slog.Error("delete object failed", "book_id", id, "key", book.StorageKey, "err", err)
	}

	if n, err := a.store.DeleteStatusesForBook(id); err != nil {
		slog.Error("delete status rows failed", "book_id", id, "err", err)
	} else if n > 0 {
		slog.Info("deleted status rows", "book_id", id, "count", n)
	}

	found, err := a.store.DeleteBook(id)
	if err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	if !found {
		return ErrNotFound
	}
	slog.Info("book deleted", "book_id", id, "user_id", ident.SubjectID)
	return nil
}

// UploadGrant is a presigned upload URL and the headers the client must
// send for the signature to validate.
type UploadGrant struct {
	UploadURL string            `json:"uploadUrl"`
	Method    string            `json:"method"`
	Headers   map[string]string `json:"headers,omitempty"`
	Filename  string            `json:"filename"`
	Key       string            `json:"key"`
	ExpiresIn int               `json:"expiresIn"`
}

// CreateUpload issues a presigned PUT URL for a new archive under the books
// prefix. Caller-supplied metadata is embedded as signed object tags, so the
// ingest pipeline reads it atomically with the object's existence.
func (a *App) CreateUpload(ctx context.Context, ident identity.Identity, req UploadRequest) (UploadGrant, error) {
	if !ident.IsAdmin {
		return UploadGrant{}, ErrForbidden
	}
	if strings.TrimSpace(req.Filename) == "" {
		return UploadGrant{}, validationf("filename is required")
	}
	if !strings.HasSuffix(strings.ToLower(req.Filename), ".zip") {
		return UploadGrant{}, validationf("only .zip files are allowed")
	}
	// Strip any path components to block traversal attempts.
	filename := path.Base(strings.ReplaceAll(req.Filename, `\`, "/"))
	if len(req.Author) > maxStringLength {
		return UploadGrant{}, validationf(`field "author" exceeds maximum length of %d`, maxStringLength)
	}
	if len(req.SeriesName) > maxStringLength {
		return UploadGrant{}, validationf(`field "series_name" exceeds maximum length of %d`, maxStringLength)
	}
	if req.SeriesOrder != nil {
		if err := validateSeriesOrder(optional.Of(*req.SeriesOrder)); err != nil {
			return UploadGrant{}, err
		}
	}
	if req.FileSize > maxFileSize {
		return UploadGrant{}, validationf("file size exceeds maximum limit of 5GB")
	}

	tags := map[string]string{}
	if author := strings.TrimSpace(req.Author); author != "" {
		tags["author"] = author
	}
	if seriesName := strings.TrimSpace(req.SeriesName); seriesName != "" {
		tags["series_name"] = seriesName
	}
	if req.SeriesOrder != nil {
		tags["series_order"] = strconv.Itoa(*req.SeriesOrder)
	}

	key := a.prefix + filename
	uploadURL, headers, err := a.objects.PresignPut(ctx, key, urlExpiry, tags)
	if err != nil {
		return UploadGrant{}, fmt.Errorf("%w: presign upload: %v", ErrUpstream, err)
	}
	grant := UploadGrant{
		UploadURL: uploadURL,
		Method:    "PUT",
		Filename:  filename,
		Key:       key,
		ExpiresIn: int(urlExpiry.Seconds()),
	}
	if len(headers) > 0 {
		grant.Headers = make(map[string]string, len(headers))
		for name := range headers {
			grant.Headers[name] = headers.Get(name)
		}
	}
	slog.Info("upload granted", "key", key, "user_id", ident.SubjectID, "email", ident.Email)
	return grant, nil
}

// MetadataResult reports what the legacy metadata endpoint changed.
type MetadataResult struct {
	Message string      `json:"message"`
	BookID  string      `json:"bookId"`
	Book    domain.Book `json:"book"`
}

// SetMetadata patches catalog fields by book id. The book may not be
// ingested yet; callers get ErrNotFound and are expected to retry with
// bounded attempts while ingestion catches up.
func (a *App) SetMetadata(ctx context.Context, ident identity.Identity, req MetadataRequest) (MetadataResult, error) {
	if !ident.IsAdmin {
		return MetadataResult{}, ErrForbidden
	}
	if strings.TrimSpace(req.BookID) == "" {
		return MetadataResult{}, validationf("bookId is required")
	}
	if len(req.Author) > maxStringLength {
		return MetadataResult{}, validationf(`field "author" exceeds maximum length of %d`, maxStringLength)
	}
	if len(req.SeriesName) > maxStringLength {
		return MetadataResult{}, validationf(`field "series_name" exceeds maximum length of %d`, maxStringLength)
	}
	if err := validateSeriesOrder(req.SeriesOrder); err != nil {
		return MetadataResult{}, err
	}

	patch := store.BookPatch{}
	author := strings.TrimSpace(req.Author)
	if author != "" {
		patch.Author = optional.Of(author)
	}
	if seriesName := strings.TrimSpace(req.SeriesName); seriesName != "" {
		patch.SeriesName = optional.Of(seriesName)
	}
	patch.SeriesOrder = req.SeriesOrder

	book, ok, err := a.store.GetBook(req.BookID)
	if err != nil {
		return MetadataResult{}, fmt.Errorf("get book: %w", err)
	}
	if !ok {
		return MetadataResult{}, ErrNotFound
	}

	if patch.Empty() {
		return MetadataResult{Message: "no metadata to update", BookID: req.BookID, Book: book}, nil
	}

	if author != "" {
		title := book.Name
		if title == "" {
			title = req.BookID
		}
		covers.UpdateOnAuthorChange(ctx, a.covers, book.Author, author, title, &patch)
	}

	updated, found, err := a.store.UpdateBook(req.BookID, patch)
	if err != nil {
		return MetadataResult{}, fmt.Errorf("update book: %w", err)
	}
	if !found {
		return MetadataResult{}, ErrNotFound
	}
	slog.Info("metadata updated", "book_id", req.BookID, "user_id", ident.SubjectID)
	return MetadataResult{Message: "metadata updated successfully", BookID: req.BookID, Book: updated}, nil
}

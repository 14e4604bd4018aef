// Package covers resolves book cover image URLs from a public book-search
// API. Resolution is best effort: failures degrade to "no cover" and are
// never surfaced to callers as errors.
package covers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"shelfgate/pkg/optional"
	"shelfgate/pkg/store"
)

const defaultBaseURL = "https://www.googleapis.com/books/v1"

const resolveTimeout = 3 * time.Second

// Resolver queries the volumes search endpoint for cover images.
type Resolver struct {
	baseURL string
	client  *http.Client
}

// NewResolver creates a resolver against the public API.
func NewResolver() *Resolver {
	return NewResolverWithBaseURL(defaultBaseURL)
}

// NewResolverWithBaseURL creates a resolver against a custom endpoint.
func NewResolverWithBaseURL(baseURL string) *Resolver {
	return &Resolver{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: resolveTimeout},
	}
}

type volumesResponse struct {
	Items []struct {
		VolumeInfo struct {
			ImageLinks struct {
				SmallThumbnail string `json:"smallThumbnail"`
				Thumbnail      string `json:"thumbnail"`
				Medium         string `json:"medium"`
			} `json:"imageLinks"`
		} `json:"volumeInfo"`
	} `json:"items"`
}

// Resolve looks up a cover URL for the title (and optional author).
// ok=false on timeout, network error, or no match.
func (r *Resolver) Resolve(ctx context.Context, title, author string) (string, bool) {
	query := title
	if author != "" {
		query = title + " " + author
	}
	// Strip common filename artifacts before searching.
	query = strings.NewReplacer("_", " ", "-", " ").Replace(query)

	endpoint := r.baseURL + "/volumes?q=" + url.QueryEscape(query) + "&maxResults=1"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", false
	}
	resp, err := r.client.Do(req)
	if err != nil {
		slog.Warn("cover lookup failed", "title", title, "err", err)
		return "", false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		slog.Warn("cover lookup failed", "title", title, "status", resp.StatusCode)
		return "", false
	}

	var payload volumesResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		slog.Warn("cover lookup failed", "title", title, "err", err)
		return "", false
	}
	if len(payload.Items) == 0 {
		return "", false
	}

	links := payload.Items[0].VolumeInfo.ImageLinks
	coverURL := links.Medium
	if coverURL == "" {
		coverURL = links.Thumbnail
	}
	if coverURL == "" {
		coverURL = links.SmallThumbnail
	}
	if coverURL == "" {
		return "", false
	}
	return strings.Replace(coverURL, "http://", "https://", 1), true
}

// Source resolves cover URLs. *Resolver implements it; tests substitute fakes.
type Source interface {
	Resolve(ctx context.Context, title, author string) (string, bool)
}

// UpdateOnAuthorChange re-resolves the cover when the author actually
// changes. On success the patch cover is set; on failure it is cleared so a
// stale cover from the previous author is not left behind.
func UpdateOnAuthorChange(ctx context.Context, r Source, currentAuthor, newAuthor, title string, patch *store.BookPatch) {
	if newAuthor == "" || newAuthor == currentAuthor {
		return
	}
	if coverURL, ok := r.Resolve(ctx, title, newAuthor); ok {
		patch.CoverImageURL = optional.Of(coverURL)
		return
	}
	slog.Info("no cover found after author change", "title", title, "author", newAuthor)
	patch.CoverImageURL = optional.Null[string]()
}

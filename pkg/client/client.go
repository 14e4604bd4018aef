// Package client is a small HTTP client for the gateway API. It is used by
// CLI tooling and by sync scripts that stamp metadata right after uploading.
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"shelfgate/pkg/domain"
)

// Client calls the gateway service over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// APIError represents a gateway error response.
type APIError struct {
	Status  int
	Label   string
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// IsNotFound reports whether err is a gateway 404.
func IsNotFound(err error) bool {
	apiErr, ok := err.(*APIError)
	return ok && apiErr.Status == http.StatusNotFound
}

// NewClient constructs a gateway client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// ListResponse is the /api/books payload.
type ListResponse struct {
	Books   []domain.BookView `json:"books"`
	IsAdmin bool              `json:"isAdmin"`
}

// BookDetail is the /api/books/{id} payload.
type BookDetail struct {
	domain.BookView
	DownloadURL string `json:"downloadUrl"`
	ExpiresIn   int    `json:"expiresIn"`
}

// MetadataUpdate describes a metadata stamp for one book. Empty strings are
// skipped server-side; SeriesOrder nil with ClearSeriesOrder set sends an
// explicit null to clear the stored value.
type MetadataUpdate struct {
	BookID           string
	Author           string
	SeriesName       string
	SeriesOrder      *int
	ClearSeriesOrder bool
}

// MetadataResult is the /api/books/metadata payload.
type MetadataResult struct {
	Message string      `json:"message"`
	BookID  string      `json:"bookId"`
	Book    domain.Book `json:"book"`
}

// ListBooks fetches the caller's library view.
func (c *Client) ListBooks(token string) (ListResponse, error) {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+"/api/books", nil)
	if err != nil {
		return ListResponse{}, err
	}
	addAuthHeader(req, token)

	var resp ListResponse
	if err := c.do(req, &resp); err != nil {
		return ListResponse{}, err
	}
	return resp, nil
}

// GetBook fetches one book with its download link.
func (c *Client) GetBook(token, id string) (BookDetail, error) {
	path := fmt.Sprintf("%s/api/books/%s", c.baseURL, id)
	req, err := http.NewRequest(http.MethodGet, path, nil)
	if err != nil {
		return BookDetail{}, err
	}
	addAuthHeader(req, token)

	var detail BookDetail
	if err := c.do(req, &detail); err != nil {
		return BookDetail{}, err
	}
	return detail, nil
}

// SetMetadata stamps metadata onto an existing book.
func (c *Client) SetMetadata(token string, update MetadataUpdate) (MetadataResult, error) {
	payload := map[string]any{"bookId": update.BookID}
	if update.Author != "" {
		payload["author"] = update.Author
	}
	if update.SeriesName != "" {
		payload["series_name"] = update.SeriesName
	}
	if update.SeriesOrder != nil {
		payload["series_order"] = *update.SeriesOrder
	} else if update.ClearSeriesOrder {
		payload["series_order"] = nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return MetadataResult{}, err
	}
	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/api/books/metadata", bytes.NewReader(body))
	if err != nil {
		return MetadataResult{}, err
	}
	addAuthHeader(req, token)
	req.Header.Set("Content-Type", "application/json")

	var result MetadataResult
	if err := c.do(req, &result); err != nil {
		return MetadataResult{}, err
	}
	return result, nil
}

// SetMetadataWithRetry retries 404 responses, which usually mean the uploaded
// object has not been ingested into the catalog yet.
func (c *Client) SetMetadataWithRetry(token string, update MetadataUpdate, attempts int, delay time.Duration) (MetadataResult, error) {
	if attempts <= 0 {
		attempts = 3
	}
	if delay <= 0 {
		delay = time.Second
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			time.Sleep(delay)
		}
		result, err := c.SetMetadata(token, update)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !IsNotFound(err) {
			return MetadataResult{}, err
		}
	}
	return MetadataResult{}, lastErr
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var errResp struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		msg := errResp.Message
		if msg == "" {
			msg = resp.Status
		}
		return &APIError{Status: resp.StatusCode, Label: errResp.Error, Message: msg}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func addAuthHeader(req *http.Request, token string) {
	if strings.TrimSpace(token) == "" {
		return
	}
	req.Header.Set("Authorization", "Bearer "+token)
}

package client

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestSetMetadataPayload(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/books/metadata" || r.Method != http.MethodPost {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer tok" {
			t.Errorf("auth header = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(MetadataResult{Message: "metadata updated successfully", BookID: "dune"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	order := 3
	result, err := c.SetMetadata("tok", MetadataUpdate{
		BookID:      "dune",
		Author:      "Frank Herbert",
		SeriesOrder: &order,
	})
	if err != nil {
		t.Fatalf("set metadata: %v", err)
	}
	if result.BookID != "dune" {
		t.Fatalf("result = %+v", result)
	}
	if got["bookId"] != "dune" || got["author"] != "Frank Herbert" {
		t.Fatalf("payload = %v", got)
	}
	if got["series_order"] != float64(3) {
		t.Fatalf("series_order = %v", got["series_order"])
	}
	if _, ok := got["series_name"]; ok {
		t.Fatal("empty series_name must be omitted")
	}
}

func TestSetMetadataClearSendsNull(t *testing.T) {
	var raw map[string]json.RawMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&raw)
		_ = json.NewEncoder(w).Encode(MetadataResult{BookID: "dune"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	if _, err := c.SetMetadata("tok", MetadataUpdate{BookID: "dune", ClearSeriesOrder: true}); err != nil {
		t.Fatalf("set metadata: %v", err)
	}
	if string(raw["series_order"]) != "null" {
		t.Fatalf("series_order = %s, want explicit null", raw["series_order"])
	}
}

func TestSetMetadataWithRetryOn404(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "Not Found", "message": "book not found"})
			return
		}
		_ = json.NewEncoder(w).Encode(MetadataResult{Message: "metadata updated successfully", BookID: "dune"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	result, err := c.SetMetadataWithRetry("tok", MetadataUpdate{BookID: "dune", Author: "A"}, 3, time.Millisecond)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if result.BookID != "dune" || calls.Load() != 3 {
		t.Fatalf("result = %+v after %d calls", result, calls.Load())
	}
}

func TestSetMetadataWithRetryGivesUp(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "Not Found", "message": "book not found"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.SetMetadataWithRetry("tok", MetadataUpdate{BookID: "ghost"}, 3, time.Millisecond)
	if !IsNotFound(err) {
		t.Fatalf("err = %v, want 404", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("calls = %d, want 3", calls.Load())
	}
}

func TestSetMetadataWithRetryStopsOnOtherErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "Forbidden", "message": "administrator role required"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.SetMetadataWithRetry("tok", MetadataUpdate{BookID: "dune"}, 3, time.Millisecond)
	apiErr, ok := err.(*APIError)
	if !ok || apiErr.Status != http.StatusForbidden {
		t.Fatalf("err = %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, forbidden must not retry", calls.Load())
	}
}

func TestListAndGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/books":
			_, _ = w.Write([]byte(`{"books":[{"id":"dune","name":"Dune","read":true}],"isAdmin":true}`))
		case "/api/books/dune":
			_, _ = w.Write([]byte(`{"id":"dune","name":"Dune","downloadUrl":"https://objects.test/dune","expiresIn":3600}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	list, err := c.ListBooks("tok")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !list.IsAdmin || len(list.Books) != 1 || !list.Books[0].Read {
		t.Fatalf("list = %+v", list)
	}
	detail, err := c.GetBook("tok", "dune")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if detail.DownloadURL != "https://objects.test/dune" || detail.ExpiresIn != 3600 {
		t.Fatalf("detail = %+v", detail)
	}
}

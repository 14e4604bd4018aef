package server

import (
	"net/http"
	"testing"
)

func TestAdminWriteRateLimit(t *testing.T) {
	env := newTestEnv(t, 1)
	env.seed(t, "dune")
	env.seed(t, "hobbit")
	adminToken := mustSignToken(t, env.signer, "admin-1", "a@example.com", []string{"admins"})

	resp := env.request(t, http.MethodDelete, "/api/books/dune", adminToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("first delete expected 200, got %d", resp.StatusCode)
	}

	resp = env.request(t, http.MethodDelete, "/api/books/dune", adminToken, nil)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("second delete expected 429, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") != "60" {
		t.Fatalf("Retry-After = %q, want 60", resp.Header.Get("Retry-After"))
	}

	// The window is keyed per path, so another endpoint is unaffected.
	resp = env.request(t, http.MethodPost, "/api/books/upload", adminToken,
		[]byte(`{"filename":"New.zip","fileSize":1024}`))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("upload expected 200, got %d", resp.StatusCode)
	}
}

func TestReadsAreNotRateLimited(t *testing.T) {
	env := newTestEnv(t, 1)
	env.seed(t, "dune")
	token := mustSignToken(t, env.signer, "user-1", "u@example.com", nil)

	for i := 0; i < 5; i++ {
		resp := env.request(t, http.MethodGet, "/api/books", token, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("read %d expected 200, got %d", i, resp.StatusCode)
		}
	}
}

func TestServerRequiresRedisRateLimiter(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected construction to fail without app and redis")
	}
}

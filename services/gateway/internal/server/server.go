package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"shelfgate/internal/identity"
	"shelfgate/internal/ratelimit"
	"shelfgate/internal/usertoken"
	"shelfgate/internal/util"
	"shelfgate/services/gateway/internal/app"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App                          *app.App
	TokenVerifier                *usertoken.Verifier
	RedisAddr                    string
	RedisPassword                string
	AdminWriteRateLimitPerMinute int
}

// Server exposes HTTP endpoints for the library backend.
type Server struct {
	app           *app.App
	tokenVerifier *usertoken.Verifier
	mux           *http.ServeMux
	adminLimiter  *ratelimit.FixedWindowLimiter
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("server requires app")
	}
	if cfg.TokenVerifier == nil {
		return nil, errors.New("server requires token verifier")
	}
	adminLimit := cfg.AdminWriteRateLimitPerMinute
	if adminLimit <= 0 {
		adminLimit = 30
	}
	adminLimiter, err := ratelimit.NewRedisFixedWindowLimiter(
		cfg.RedisAddr, cfg.RedisPassword, "shelfgate:gateway:ratelimit:adminwrite", adminLimit, time.Minute)
	if err != nil {
		return nil, fmt.Errorf("init admin write limiter: %w", err)
	}
	s := &Server{
		app:           cfg.App,
		tokenVerifier: cfg.TokenVerifier,
		mux:           http.NewServeMux(),
		adminLimiter:  adminLimiter,
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithSecurityHeaders(util.WithCORS(util.WithRequestID(util.WithRequestLog("gateway", s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	s.mux.Handle("/api/books", s.authenticated(s.handleBooks))
	s.mux.Handle("/api/books/upload", s.authenticated(s.handleUpload))
	s.mux.Handle("/api/books/metadata", s.authenticated(s.handleSetMetadata))
	s.mux.Handle("/api/books/", s.authenticated(s.handleBookByID))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// auth wrappers
type authHandler func(http.ResponseWriter, *http.Request, identity.Identity)

func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			s.audit(r, "gateway.authorize", "fail", "reason", "missing_token")
			writeError(w, http.StatusUnauthorized, "Unauthorized", "user not authenticated")
			return
		}
		claims, err := s.tokenVerifier.VerifyClaims(token)
		if err != nil {
			s.audit(r, "gateway.authorize", "fail", "reason", "invalid_signature_or_claims")
			writeError(w, http.StatusUnauthorized, "Unauthorized", "user not authenticated")
			return
		}
		ident, err := identity.Resolve(claims)
		if err != nil {
			s.audit(r, "gateway.authorize", "fail", "reason", "no_subject")
			writeError(w, http.StatusUnauthorized, "Unauthorized", "user not authenticated")
			return
		}
		s.audit(r, "gateway.authorize", "success", "user_id", ident.SubjectID)
		next(w, r, ident)
	})
}

// /api/books
func (s *Server) handleBooks(w http.ResponseWriter, r *http.Request, ident identity.Identity) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	result, err := s.app.ListBooks(r.Context(), ident)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// /api/books/{id}
func (s *Server) handleBookByID(w http.ResponseWriter, r *http.Request, ident identity.Identity) {
	id := strings.TrimPrefix(r.URL.Path, "/api/books/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "Bad Request", "book id is required in path")
		return
	}
	switch r.Method {
	case http.MethodGet:
		detail, err := s.app.GetBook(r.Context(), ident, id)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, detail)
	case http.MethodPatch:
		var req app.UpdateRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Bad Request", "invalid JSON in request body")
			return
		}
		view, err := s.app.UpdateBook(r.Context(), ident, id, req)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	case http.MethodDelete:
		if !s.allowAdminWrite(w, r) {
			return
		}
		if err := s.app.DeleteBook(r.Context(), ident, id); err != nil {
			writeAppError(w, r, err)
			return
		}
		s.audit(r, "gateway.book.delete", "success", "user_id", ident.SubjectID, "book_id", id)
		writeJSON(w, http.StatusOK, map[string]string{"message": "book deleted successfully", "bookId": id})
	default:
		methodNotAllowed(w)
	}
}

// /api/books/upload
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request, ident identity.Identity) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowAdminWrite(w, r) {
		return
	}
	var req app.UploadRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Bad Request", "invalid JSON in request body")
		return
	}
	grant, err := s.app.CreateUpload(r.Context(), ident, req)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	s.audit(r, "gateway.book.upload", "success", "user_id", ident.SubjectID, "key", grant.Key)
	writeJSON(w, http.StatusOK, grant)
}

// /api/books/metadata
func (s *Server) handleSetMetadata(w http.ResponseWriter, r *http.Request, ident identity.Identity) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowAdminWrite(w, r) {
		return
	}
	var req app.MetadataRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Bad Request", "invalid JSON in request body")
		return
	}
	result, err := s.app.SetMetadata(r.Context(), ident, req)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", false
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	return token, token != ""
}

func (s *Server) allowAdminWrite(w http.ResponseWriter, r *http.Request) bool {
	key := r.URL.Path + "|" + clientIP(r)
	if s.adminLimiter.Allow(key) {
		return true
	}
	s.audit(r, "gateway.adminwrite", "rate_limited")
	w.Header().Set("Retry-After", "60")
	writeError(w, http.StatusTooManyRequests, "Too Many Requests", "too many admin write requests")
	return false
}

func clientIP(r *http.Request) string {
	return util.ClientIP(r, nil)
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", clientIP(r),
		"request_id", util.RequestIDFromRequest(r),
	}
	logAttrs = append(logAttrs, attrs...)
	if outcome == "success" {
		slog.Info("security_event", logAttrs...)
		return
	}
	slog.Warn("security_event", logAttrs...)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, errLabel, msg string) {
	writeJSON(w, status, map[string]string{"error": errLabel, "message": msg})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed", "method not allowed")
}

// writeAppError maps application errors to the stable status taxonomy.
// Unexpected errors are logged with detail but reported generically.
func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *app.ValidationError
	switch {
	case errors.As(err, &validationErr):
		writeError(w, http.StatusBadRequest, "Bad Request", validationErr.Error())
	case errors.Is(err, app.ErrNotFound):
		writeError(w, http.StatusNotFound, "Not Found", "book not found")
	case errors.Is(err, app.ErrForbidden):
		writeError(w, http.StatusForbidden, "Forbidden", "administrator role required")
	case errors.Is(err, identity.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "Unauthorized", "user not authenticated")
	case errors.Is(err, app.ErrUpstream):
		slog.Error("upstream failure", "path", r.URL.Path, "err", err)
		writeError(w, http.StatusBadGateway, "Upstream Unavailable", "object store unavailable")
	default:
		slog.Error("internal error", "path", r.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, "Internal Server Error", "unexpected error")
	}
}

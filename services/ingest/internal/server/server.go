// Package server exposes the ingest service's small HTTP surface: a health
// probe and an operator endpoint for replaying notifications by hand.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"shelfgate/internal/servicetoken"
	"shelfgate/internal/util"
	"shelfgate/services/ingest/internal/app"
)

// Config wires required dependencies for the HTTP server. ReplayVerifier
// guards the replay endpoint; when nil the endpoint is open, which is only
// acceptable for local development.
type Config struct {
	App            *app.App
	ReplayVerifier *servicetoken.Verifier
}

// Server handles health checks and manual event replay.
type Server struct {
	app      *app.App
	verifier *servicetoken.Verifier
	mux      *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("server requires app")
	}
	s := &Server{app: cfg.App, verifier: cfg.ReplayVerifier, mux: http.NewServeMux()}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog("ingest", s.mux))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/events", s.handleEvents)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleEvents accepts a raw bucket notification and runs it through the same
// pipeline as queued messages. Useful for backfilling objects that predate
// the notification wiring.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed", "method not allowed")
		return
	}
	if s.verifier != nil {
		token, ok := servicetoken.BearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "Unauthorized", "service token required")
			return
		}
		claims, err := s.verifier.Verify(token)
		if err != nil {
			slog.Warn("security_event",
				"event", "ingest.replay", "outcome", "fail",
				"reason", "invalid_service_token", "request_id", util.RequestIDFromRequest(r))
			writeError(w, http.StatusUnauthorized, "Unauthorized", "service token required")
			return
		}
		slog.Info("security_event",
			"event", "ingest.replay", "outcome", "success",
			"issuer", claims.Issuer, "request_id", util.RequestIDFromRequest(r))
	}
	var n app.Notification
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&n); err != nil {
		writeError(w, http.StatusBadRequest, "Bad Request", "invalid JSON in request body")
		return
	}
	processed := s.app.HandleNotification(r.Context(), n)
	writeJSON(w, http.StatusOK, map[string]int{"received": len(n.Records), "processed": processed})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, errLabel, msg string) {
	writeJSON(w, status, map[string]string{"error": errLabel, "message": msg})
}

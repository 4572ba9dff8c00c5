// Package server exposes the assistant over HTTP: a websocket session
// endpoint for conversational turns, note retrieval endpoints, health
// probes, and Prometheus metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/skald-ai/skald/internal/assistant"
	"github.com/skald-ai/skald/internal/health"
	"github.com/skald-ai/skald/internal/notes"
	"github.com/skald-ai/skald/internal/observe"
)

// Config holds the Server's collaborators.
type Config struct {
	// ListenAddr is the TCP address to listen on (e.g., ":8080").
	ListenAddr string

	// Assistant handles conversational turns.
	Assistant *assistant.Assistant

	// SafetyMode is the default for new sessions; clients can override it
	// per connection.
	SafetyMode bool

	// Notes generates session notes; NoteStore persists them.
	Notes     *notes.Generator
	NoteStore notes.Store

	// Health serves /healthz and /readyz. A nil handler still serves a
	// liveness probe.
	Health *health.Handler

	// Metrics defaults to [observe.DefaultMetrics] when nil.
	Metrics *observe.Metrics
}

// Server is the HTTP front end. Create with [New], start with [Server.Run].
type Server struct {
	cfg     Config
	metrics *observe.Metrics
	httpSrv *http.Server
}

// New creates a Server with all routes registered.
func New(cfg Config) *Server {
	m := cfg.Metrics
	if m == nil {
		m = observe.DefaultMetrics()
	}
	s := &Server{cfg: cfg, metrics: m}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/session", s.handleSession)
	mux.HandleFunc("GET /v1/notes/{id}", s.handleGetNote)
	mux.HandleFunc("GET /v1/sessions/{session_id}/notes", s.handleListNotes)
	mux.Handle("GET /metrics", promhttp.Handler())

	h := cfg.Health
	if h == nil {
		h = health.New()
	}
	h.Register(mux)

	s.httpSrv = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           observe.Middleware(m)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully. It
// returns nil after a clean shutdown.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", s.cfg.ListenAddr)
		errCh <- s.httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

// handleGetNote serves a single stored note as JSON.
func (s *Server) handleGetNote(w http.ResponseWriter, r *http.Request) {
	if s.cfg.NoteStore == nil {
		http.Error(w, `{"error":"notes are not enabled"}`, http.StatusNotFound)
		return
	}
	note, err := s.cfg.NoteStore.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, notes.ErrNotFound) {
			http.Error(w, `{"error":"note not found"}`, http.StatusNotFound)
			return
		}
		slog.Error("note lookup failed", "err", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, note)
}

// handleListNotes serves all notes for a session, newest first.
func (s *Server) handleListNotes(w http.ResponseWriter, r *http.Request) {
	if s.cfg.NoteStore == nil {
		http.Error(w, `{"error":"notes are not enabled"}`, http.StatusNotFound)
		return
	}
	list, err := s.cfg.NoteStore.ListBySession(r.Context(), r.PathValue("session_id"))
	if err != nil {
		slog.Error("note listing failed", "err", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []*notes.Note{}
	}
	writeJSON(w, list)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("response encoding failed", "err", err)
	}
}

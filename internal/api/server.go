// Package api exposes the enriched active calls over HTTP.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/UnknownOlympus/patrol/internal/calls"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Snapshotter returns the current board content.
type Snapshotter interface {
	Snapshot() calls.Summary
}

// Trigger requests an immediate refresh without waiting for it.
type Trigger interface {
	Trigger() bool
}

// Server wires HTTP handlers to the board and the refresh loop.
type Server struct {
	router  chi.Router
	board   Snapshotter
	refresh Trigger
	log     *slog.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(log *slog.Logger, board Snapshotter, refresh Trigger, reg *prometheus.Registry) *Server {
	s := &Server{board: board, refresh: refresh, log: log}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", s.healthz)
	r.Get("/healthz", s.healthz)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/calls", s.listCalls)
		r.Get("/refresh", s.triggerRefresh)
		r.Post("/refresh", s.triggerRefresh)
	})

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, map[string]any{"status": "ok", "uptime_check": true})
}

func (s *Server) listCalls(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, s.board.Snapshot())
}

func (s *Server) triggerRefresh(w http.ResponseWriter, r *http.Request) {
	if !s.refresh.Trigger() {
		s.log.DebugContext(r.Context(), "Refresh already pending")
	}
	s.writeJSON(w, r, http.StatusOK, map[string]string{"status": "refresh_triggered"})
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.ErrorContext(r.Context(), "failed to write reply", "error", err)
	}
}

// Package dashboard serves the read-only HTTP view of the queue: a small
// auto-refreshing HTML page plus the JSON API backing it. It never mutates
// jobs; every write still goes through the CLI.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/queuectl/queuectl/pkg/job"
	"github.com/queuectl/queuectl/pkg/logging"
	"github.com/queuectl/queuectl/pkg/manager"
	"github.com/queuectl/queuectl/pkg/store"
)

const (
	defaultReadTimeout  = 10 * time.Second
	defaultWriteTimeout = 10 * time.Second
	shutdownTimeout     = 10 * time.Second
)

// Server is the dashboard HTTP server.
type Server struct {
	http *http.Server
	mgr  *manager.Manager
	log  zerolog.Logger
}

// New creates a dashboard server listening on addr:port.
func New(mgr *manager.Manager, addr string, port int) *Server {
	s := &Server{
		mgr: mgr,
		log: logging.NewLogger("dashboard", zerolog.InfoLevel),
	}
	s.http = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", addr, port),
		Handler:      s.Router(),
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
	}
	return s
}

// Router mounts the dashboard page and the JSON API.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/api/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/jobs", s.handleJobs).Methods(http.MethodGet)
	r.HandleFunc("/api/jobs/{id}", s.handleJob).Methods(http.MethodGet)
	r.HandleFunc("/api/metrics", s.handleMetrics).Methods(http.MethodGet)
	return r
}

// Run starts the server and blocks until ctx is cancelled or the listener
// fails, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.log.Info().Str("addr", s.http.Addr).Msg("dashboard started")

	serverErr := make(chan error, 1)
	go func() {
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- fmt.Errorf("dashboard server failed: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		s.log.Info().Msg("shutdown signal received")
	case err := <-serverErr:
		s.log.Error().Err(err).Msg("dashboard server error")
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("dashboard shutdown: %w", err)
	}
	s.log.Info().Msg("dashboard stopped")
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(indexHTML))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.mgr.Status(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var state job.State
	if raw := q.Get("state"); raw != "" {
		state = job.State(raw)
		if !state.Valid() {
			s.writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": fmt.Sprintf("unknown state %q", raw),
			})
			return
		}
	}

	limit := 50
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": fmt.Sprintf("invalid limit %q", raw),
			})
			return
		}
		limit = n
	}

	jobs, err := s.mgr.List(r.Context(), state, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	j, err := s.mgr.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, j)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	mx, err := s.mgr.Metrics(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, mx)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("encoding response failed")
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case store.IsNotFound(err):
		status = http.StatusNotFound
	case store.IsInvalidInput(err):
		status = http.StatusBadRequest
	case store.IsUnavailable(err):
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

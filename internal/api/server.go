// Package api exposes the HTTP interface for the curation service.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/inbix/curator/internal/config"
	"github.com/inbix/curator/internal/curator"
	"github.com/inbix/curator/internal/job"
	"github.com/inbix/curator/internal/metrics"
)

// Server wires HTTP handlers to the job runner and snapshot store.
type Server struct {
	router chi.Router
	runner *job.Runner
	store  curator.SnapshotStore
	clock  curator.Clock
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	runner *job.Runner,
	store curator.SnapshotStore,
	clock curator.Clock,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		runner: runner,
		store:  store,
		clock:  clock,
		logger: logger.Named("api"),
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))
	r.Use(recoverMiddleware(s.logger))
	r.Use(metricsMiddleware)
	r.Use(corsMiddleware)
	r.Use(timeoutMiddleware(60 * time.Second))

	r.Get("/metrics", metrics.Handler().ServeHTTP)

	r.Route("/api", func(r chi.Router) {
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
		}
		r.Post("/atualizar", s.atualizar)
		r.Get("/status", s.status)
		r.Get("/curadoria", s.curadoria)
		r.Get("/health", s.health)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// atualizar starts a pipeline run in the background. The response only
// acknowledges the trigger; clients poll /api/status for progress and read
// /api/curadoria for the result.
func (s *Server) atualizar(w http.ResponseWriter, _ *http.Request) {
	if !s.runner.Trigger() {
		writeJSON(w, http.StatusOK, map[string]any{
			"started": false,
			"status":  s.runner.Status(),
		})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"started": true,
		"status":  s.runner.Status(),
	})
}

func (s *Server) status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.runner.Status())
}

// curadoria serves the latest persisted snapshot, even while a new run is
// in flight.
func (s *Server) curadoria(w http.ResponseWriter, r *http.Request) {
	snap, err := s.store.Load(r.Context())
	if err != nil {
		s.logger.Error("snapshot load failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load curated data")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": s.clock.Now().Format(time.RFC3339),
	})
}

// SPDX-License-Identifier: MIT

// Package api exposes the control core over HTTP for observability and the
// administrative operations the engine contract names (error count reset).
// Everything else is read-only: collaborators drive the engine in-process.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/atriumxr/atrium/internal/engine"
	"github.com/atriumxr/atrium/internal/health"
	"github.com/atriumxr/atrium/internal/journal"
	"github.com/atriumxr/atrium/internal/log"
)

// Server serves the observability/admin API.
type Server struct {
	engine  *engine.Engine
	journal *journal.Journal // optional
	health  *health.Manager
	logger  zerolog.Logger
}

// New creates a server around the given engine. journal may be nil.
func New(eng *engine.Engine, jrnl *journal.Journal, hm *health.Manager) *Server {
	return &Server{
		engine:  eng,
		journal: jrnl,
		health:  hm,
		logger:  log.WithComponent("api"),
	}
}

// Router builds the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(s.requestLogger)
	r.Use(httprate.LimitByIP(300, time.Minute))

	r.Get("/healthz", s.health.ServeHealth)
	r.Get("/readyz", s.health.ServeReady)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/state", s.handleState)
		r.Get("/state/history", s.handleHistory)
		r.Get("/errors", s.handleErrors)
		r.Post("/errors/{kind}/reset", s.handleErrorReset)
		r.Get("/resources", s.handleResources)
		r.Get("/journal", s.handleJournal)
	})

	return otelhttp.NewHandler(r, "atrium-api")
}

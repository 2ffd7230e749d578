// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api exposes the video access facade over HTTP.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ManuGH/vidref/internal/access"
	"github.com/ManuGH/vidref/internal/api/middleware"
	"github.com/ManuGH/vidref/internal/blob"
	"github.com/ManuGH/vidref/internal/health"
	"github.com/ManuGH/vidref/internal/player"
)

// Config controls the router.
type Config struct {
	RateLimitRPS int
	// TracingService enables otelhttp spans under this service name.
	TracingService string
	Version        string
}

// Deps are the components the API serves.
type Deps struct {
	Capability access.Capability
	Sessions   *player.Manager
	// Blobs serves minted blob URLs. Nil on native.
	Blobs *blob.Registry
	// Health serves /healthz and /readyz. Defaults to a manager with no
	// checkers.
	Health *health.Manager
	// Now is the clock used to stamp user gestures. Defaults to time.Now.
	Now func() time.Time
}

// Server is the HTTP API.
type Server struct {
	cfg    Config
	deps   Deps
	router chi.Router
}

func New(cfg Config, deps Deps) *Server {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Health == nil {
		deps.Health = health.NewManager(cfg.Version, string(deps.Capability.Platform()))
	}
	s := &Server{cfg: cfg, deps: deps}
	s.router = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	// Probes and scrapes bypass rate limiting and tracing.
	r.Group(func(r chi.Router) {
		middleware.ApplyStack(r, middleware.StackConfig{})
		r.Get("/healthz", s.deps.Health.ServeHealth)
		r.Get("/readyz", s.deps.Health.ServeReady)
		r.Handle("/metrics", promhttp.Handler())
	})

	r.Group(func(r chi.Router) {
		middleware.ApplyStack(r, middleware.StackConfig{
			EnableMetrics:  true,
			TracingService: s.cfg.TracingService,
			EnableLogging:  true,
		})
		if s.deps.Blobs != nil {
			r.Method(http.MethodGet, blob.PathPrefix+"{id}", s.deps.Blobs)
			r.Method(http.MethodHead, blob.PathPrefix+"{id}", s.deps.Blobs)
		}
	})

	r.Route("/api/v1", func(r chi.Router) {
		middleware.ApplyStack(r, middleware.StackConfig{
			EnableMetrics:  true,
			TracingService: s.cfg.TracingService,
			EnableLogging:  true,
			RateLimitRPS:   s.cfg.RateLimitRPS,
		})
		r.Post("/validate", s.handleValidate)
		r.Post("/videos", s.handleUpload)
		r.Delete("/videos", s.handleRelease)
		r.Get("/thumbnails", s.handleThumbnail)

		r.Post("/sessions", s.handleOpenSession)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Delete("/", s.handleCloseSession)
			r.Get("/playback", s.handlePlayback)
			r.Post("/permission", s.handlePermission)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, r, http.StatusNotFound, "system/not_found", "Not Found", "NOT_FOUND", "no such route")
	})
	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

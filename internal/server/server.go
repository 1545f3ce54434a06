// Package server exposes the processed statistics over HTTP for Grafana.
//
// Endpoints:
//   - GET  /api/v1/domains
//   - GET  /api/v1/{domain}/{resolution}
//   - POST /api/v1/{domain}/refresh
//   - GET  /healthz, /readyz, /metrics
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/domdfcoding/statsbackend/internal/backend"
	"github.com/domdfcoding/statsbackend/internal/influx"
	middleware "github.com/domdfcoding/statsbackend/internal/server/middlewares"
)

// Config holds server tuning options.
type Config struct {
	Addr           string
	CacheSize      int     // size of the LRU response cache
	RateLimit      float64 // requests per second
	RateLimitBurst int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Addr:           ":8080",
		CacheSize:      256,
		RateLimit:      5.0,
		RateLimitBurst: 10,
	}
}

var registerMetricsOnce sync.Once

// Server serves the statistics API.
type Server struct {
	registry   *backend.Registry
	logger     *logrus.Logger
	httpServer *http.Server
}

// New builds the router with the full middleware chain and returns the
// server, ready to Start.
func New(registry *backend.Registry, logger *logrus.Logger, cfg Config) (*Server, error) {
	if err := middleware.InitializeCache(cfg.CacheSize); err != nil {
		return nil, err
	}

	registerMetricsOnce.Do(func() {
		prometheus.MustRegister(middleware.Requests)
		prometheus.MustRegister(middleware.Latency)
	})

	s := &Server{
		registry: registry,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.NewRateLimit(cfg.RateLimit, cfg.RateLimitBurst))
	r.Use(middleware.NewLogging(logger))
	r.Use(middleware.Metrics)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/domains", s.handleDomains)
		r.Post("/{domain}/refresh", s.handleRefresh)
		// Cache last so errors are never cached.
		r.With(middleware.Cache).Get("/{domain}/{resolution}", s.handleEndpoint)
	})

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Handle("/metrics", promhttp.Handler())

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.WithFields(logrus.Fields{
		"addr": s.httpServer.Addr,
	}).Info("Starting HTTP server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the router, useful for tests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleDomains(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"domains": s.registry.Domains(),
	})
}

func (s *Server) handleEndpoint(w http.ResponseWriter, r *http.Request) {
	domain := chi.URLParam(r, "domain")
	resolution := chi.URLParam(r, "resolution")

	envelope, err := s.registry.Endpoint(r.Context(), domain, resolution)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	domain := chi.URLParam(r, "domain")

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	n, err := s.registry.Update(ctx, domain)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	middleware.PurgeCache()
	writeJSON(w, http.StatusOK, map[string]any{
		"domain":      domain,
		"new_records": n,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	if len(s.registry.Domains()) == 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "no domains registered"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// writeError maps domain errors onto HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, backend.ErrUnknownDomain):
		status = http.StatusNotFound
	case errors.Is(err, backend.ErrUnsupportedResolution):
		status = http.StatusBadRequest
	case errors.Is(err, influx.ErrQuery), errors.Is(err, influx.ErrConnect):
		status = http.StatusBadGateway
	case errors.Is(err, influx.ErrMalformedRow):
		status = http.StatusBadGateway
	}

	s.logger.WithFields(logrus.Fields{
		"request_id": middleware.RequestIDFrom(r.Context()),
		"path":       r.URL.Path,
		"status":     status,
	}).WithError(err).Warn("Request failed")

	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		fmt.Fprintf(w, `{"error": "encoding failed"}`)
	}
}

// Package server exposes the extraction agent over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jmylchreest/specagent/internal/logger"
	"github.com/jmylchreest/specagent/internal/metrics"
	"github.com/jmylchreest/specagent/pkg/agent"
)

// Config configures the HTTP server.
type Config struct {
	Addr string
	// APIKey is the key callers must present in X-API-Key.
	APIKey string
	// AgentOptions are applied to every agent before per-request overrides.
	AgentOptions []agent.Option
	// RunTimeout bounds a single extraction request. Zero means no limit.
	RunTimeout time.Duration
	// Metrics, when set, is served on GET /metrics and updated per run.
	Metrics *metrics.Metrics
}

// Server serves the extraction API.
type Server struct {
	cfg     Config
	handler http.Handler
}

// New builds a server and its routes.
func New(cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8000"
	}
	s := &Server{cfg: cfg}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/extract", s.handleExtract)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /version", s.handleVersion)
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics.Handler())
	}

	// Middleware chain: recovery -> auth -> logging -> mux
	var h http.Handler = mux
	h = logMiddleware(h)
	h = authMiddleware(cfg.APIKey, h)
	h = recoveryMiddleware(h)
	s.handler = h

	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      0, // extraction runs can be long
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", s.cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}

// Package api provides HTTP API server components.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/go-chi/chi/v5"

	"github.com/mnemo/mnemo/config"
	"github.com/mnemo/mnemo/pkg/logger"
)

// Server is the HTTP server lifecycle.
type Server interface {
	Start() error
	Shutdown(ctx context.Context) error
}

// HTTPServer serves the memory API. Once Shutdown begins, the readiness
// probe reports not-ready so load balancers stop routing while in-flight
// requests drain.
type HTTPServer struct {
	config   *config.Config
	server   *http.Server
	router   chi.Router
	logger   logger.Logger
	draining atomic.Bool
}

// NewHTTPServer builds the router and the underlying http.Server. When a
// health handler is present, the server registers its drain gate as a
// readiness check.
func NewHTTPServer(cfg *config.Config, log logger.Logger, handlers *Handlers) *HTTPServer {
	s := &HTTPServer{
		config: cfg,
		logger: log,
	}
	if handlers.Health != nil {
		handlers.Health.AddCheck("server", func(ctx context.Context) bool {
			return !s.draining.Load()
		})
	}

	s.router = NewRouter(cfg, log, handlers)
	s.server = &http.Server{
		Addr:           fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:        s.router,
		ReadTimeout:    cfg.Server.HTTP.ReadTimeout,
		WriteTimeout:   cfg.Server.HTTP.WriteTimeout,
		IdleTimeout:    cfg.Server.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.Server.HTTP.MaxHeaderBytes,
	}
	return s
}

// Start blocks serving requests until Shutdown is called or the listener
// fails.
func (s *HTTPServer) Start() error {
	s.logger.Info("Starting HTTP server",
		"addr", s.server.Addr,
		"read_timeout", s.config.Server.HTTP.ReadTimeout,
		"write_timeout", s.config.Server.HTTP.WriteTimeout,
	)

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error("HTTP server failed", "error", err)
		return fmt.Errorf("api: serve: %w", err)
	}
	return nil
}

// Shutdown marks the server draining and waits for in-flight requests,
// bounded by ctx.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	s.draining.Store(true)
	s.logger.Info("Shutting down HTTP server")

	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown failed", "error", err)
		return fmt.Errorf("api: shutdown: %w", err)
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

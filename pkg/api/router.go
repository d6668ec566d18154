// Package api provides HTTP API server components.
package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/mnemo/mnemo/config"
	"github.com/mnemo/mnemo/pkg/api/handlers"
	"github.com/mnemo/mnemo/pkg/api/middleware"
	"github.com/mnemo/mnemo/pkg/logger"
)

// Handlers holds all HTTP handlers.
type Handlers struct {
	// Memory handles conversational memory endpoints
	Memory *handlers.MemoryHandler

	// Social handles shared character memory endpoints
	Social *handlers.SocialHandler

	// Health handles health check endpoints
	Health *handlers.HealthHandler

	// Metrics is the optional metrics recorder
	Metrics middleware.MetricsRecorder
}

// NewRouter creates a new chi router with middleware and routes.
func NewRouter(cfg *config.Config, log logger.Logger, handlers *Handlers) chi.Router {
	r := chi.NewRouter()

	// Register global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(log))
	r.Use(middleware.Recovery(log))

	// Add metrics middleware if provided
	if handlers.Metrics != nil {
		r.Use(middleware.Metrics(handlers.Metrics))
	}

	r.Use(middleware.CORS(&cfg.Server.CORS))
	r.Use(middleware.Timeout(cfg.Server.HTTP.ReadTimeout))

	// Register routes
	RegisterRoutes(r, handlers)

	return r
}

// RegisterRoutes registers all API routes.
func RegisterRoutes(r chi.Router, handlers *Handlers) {
	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Conversational memory routes
		if handlers.Memory != nil {
			r.Route("/memory/{userID}/{characterID}", func(r chi.Router) {
				r.Post("/turns", handlers.Memory.AppendTurns)
				r.Get("/recent", handlers.Memory.Recent)
				r.Post("/recall", handlers.Memory.Recall)
				r.Get("/important", handlers.Memory.GetImportant)
				r.Put("/important", handlers.Memory.SetImportant)
				r.Delete("/important", handlers.Memory.DeleteImportant)
				r.Post("/consolidate", handlers.Memory.Consolidate)
				r.Delete("/", handlers.Memory.Forget)
			})
		}

		// Shared character memory routes
		if handlers.Social != nil {
			r.Route("/social/{characterID}", func(r chi.Router) {
				r.Post("/", handlers.Social.Save)
				r.Post("/search", handlers.Social.Search)
				r.Delete("/", handlers.Social.Delete)
			})
		}
	})

	// Health check routes (not versioned)
	if handlers.Health != nil {
		r.Get("/health", handlers.Health.Health)
		r.Get("/ready", handlers.Health.Ready)
		r.Get("/status", handlers.Health.Status)
	}
}

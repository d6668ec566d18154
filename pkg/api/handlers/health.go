// Package handlers provides HTTP request handlers.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/mnemo/mnemo/pkg/api/response"
)

// Check probes one dependency. It reports health, never an error.
type Check func(ctx context.Context) bool

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	version string
	started time.Time
	names   []string
	checks  map[string]Check
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(version string) *HealthHandler {
	return &HealthHandler{
		version: version,
		started: time.Now(),
		checks:  make(map[string]Check),
	}
}

// AddCheck registers a named dependency probe. Probes run in registration
// order.
func (h *HealthHandler) AddCheck(name string, check Check) {
	if _, ok := h.checks[name]; !ok {
		h.names = append(h.names, name)
	}
	h.checks[name] = check
}

// Health handles the /health endpoint (liveness probe).
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Ready handles the /ready endpoint (readiness probe). It fails when any
// dependency probe fails.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	for _, name := range h.names {
		if !h.checks[name](r.Context()) {
			response.JSON(w, http.StatusServiceUnavailable, map[string]any{
				"ready":  false,
				"failed": name,
			})
			return
		}
	}
	response.JSON(w, http.StatusOK, map[string]bool{
		"ready": true,
	})
}

// Status handles the /status endpoint (detailed status).
func (h *HealthHandler) Status(w http.ResponseWriter, r *http.Request) {
	deps := make(map[string]bool, len(h.checks))
	for _, name := range h.names {
		deps[name] = h.checks[name](r.Context())
	}
	response.JSON(w, http.StatusOK, map[string]any{
		"version":        h.version,
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
		"dependencies":   deps,
	})
}

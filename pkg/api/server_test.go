package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mnemo/mnemo/pkg/api/handlers"
	"github.com/mnemo/mnemo/pkg/logger"
)

func TestServerDrainGateFailsReadiness(t *testing.T) {
	cfg := testRouterConfig()
	log := logger.New(&logger.Config{Level: logger.ErrorLevel, Format: "text", Output: "stderr"})
	h := &Handlers{Health: handlers.NewHealthHandler("test")}
	srv := NewHTTPServer(cfg, log, h)

	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("ready before shutdown = %d, want %d", rec.Code, http.StatusOK)
	}

	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	rec = httptest.NewRecorder()
	srv.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("ready while draining = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

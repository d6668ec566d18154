package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestManagerDisabled(t *testing.T) {
	m := NewManager(Config{Enabled: false})
	if m.Enabled() {
		t.Error("expected disabled manager")
	}
	// recording on a disabled manager must not panic
	m.RecordCacheOp("get", "ok", time.Millisecond)
	m.RecordVectorOp("search", "ok", time.Millisecond)
	m.RecordSQLOp("ok", time.Millisecond)
	m.RecordConsolidation("ok", time.Second)
	m.RecordHTTPRequest("GET", "/health", "200", time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("disabled handler status = %d, want 404", rec.Code)
	}
}

func TestManagerExposesRecordedMetrics(t *testing.T) {
	m := NewManager(DefaultConfig())
	m.RecordCacheOp("get", "ok", 2*time.Millisecond)
	m.RecordVectorOp("upsert", "error", 5*time.Millisecond)
	m.RecordConsolidation("fallback", time.Second)
	m.RecordHTTPRequest("POST", "/api/v1/memory/{user_id}/{character_id}/turns", "200", time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	out := string(body)

	for _, want := range []string{
		`mnemo_cache_operations_total{op="get",status="ok"} 1`,
		`mnemo_vector_operations_total{op="upsert",status="error"} 1`,
		`mnemo_consolidations_total{outcome="fallback"} 1`,
		"mnemo_http_requests_total",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("metrics output is missing %q", want)
		}
	}
}

func TestNoOpManager(t *testing.T) {
	m := NoOpManager()
	if m.Enabled() {
		t.Error("no-op manager should be disabled")
	}
}

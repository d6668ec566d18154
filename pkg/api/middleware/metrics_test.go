package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace"
)

type recordedRequest struct {
	method string
	path   string
	status string
}

type mockRecorder struct {
	requests    []recordedRequest
	activeConns int
}

func (m *mockRecorder) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.requests = append(m.requests, recordedRequest{method, path, status})
}

func (m *mockRecorder) IncActiveConnections() { m.activeConns++ }
func (m *mockRecorder) DecActiveConnections() { m.activeConns-- }

type contextRecorder struct {
	mockRecorder
	ctxRecords int
	traceID    string
}

func (m *contextRecorder) RecordHTTPRequestWithContext(ctx context.Context, method, path, status string, duration time.Duration) {
	m.ctxRecords++
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		m.traceID = sc.TraceID().String()
	}
}

func TestMetricsRecordsRequest(t *testing.T) {
	mock := &mockRecorder{}
	handler := Metrics(mock)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/memory/u1/c1/recent", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if len(mock.requests) != 1 {
		t.Fatalf("recorded %d requests, want 1", len(mock.requests))
	}
	got := mock.requests[0]
	if got.method != http.MethodGet || got.status != "404" {
		t.Errorf("recorded %+v", got)
	}
	if mock.activeConns != 0 {
		t.Errorf("active connections = %d after request, want 0", mock.activeConns)
	}
}

func TestMetricsSkipsMetricsEndpoint(t *testing.T) {
	mock := &mockRecorder{}
	handler := Metrics(mock)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if len(mock.requests) != 0 {
		t.Errorf("recorded %d requests for /metrics, want 0", len(mock.requests))
	}
}

func TestMetricsRecordsPanicAs500(t *testing.T) {
	mock := &mockRecorder{}
	handler := Metrics(mock)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	defer func() {
		if recover() == nil {
			t.Fatal("panic was swallowed")
		}
		if len(mock.requests) != 1 || mock.requests[0].status != "500" {
			t.Errorf("recorded %+v, want one 500", mock.requests)
		}
	}()

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/memory/u1/c1/recent", nil))
}

func TestMetricsPrefersContextRecorder(t *testing.T) {
	mock := &contextRecorder{}
	handler := Metrics(mock)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1},
		SpanID:     trace.SpanID{2, 2, 2, 2, 2, 2, 2, 2},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/memory/u1/c1/recent", nil).WithContext(ctx)

	handler.ServeHTTP(httptest.NewRecorder(), req)

	if mock.ctxRecords != 1 {
		t.Fatalf("context recorder called %d times, want 1", mock.ctxRecords)
	}
	if len(mock.requests) != 0 {
		t.Errorf("base recorder called %d times, want 0", len(mock.requests))
	}
	if mock.traceID != sc.TraceID().String() {
		t.Errorf("trace ID = %q, want %q", mock.traceID, sc.TraceID().String())
	}
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"/api/v1/memory/u1/c1/recent", "/api/v1/memory/u1/c1/recent"},
		{"/api/v1/memory/42/7/recent", "/api/v1/memory/:id/:id/recent"},
		{"/api/v1/social/550e8400-e29b-41d4-a716-446655440000/search", "/api/v1/social/:id/search"},
		{"/health", "/health"},
	}
	for _, tt := range tests {
		if got := normalizePath(tt.input); got != tt.want {
			t.Errorf("normalizePath(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

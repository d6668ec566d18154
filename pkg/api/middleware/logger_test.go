package middleware

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mnemo/mnemo/pkg/logger"
)

func TestLoggerPassesResponseThrough(t *testing.T) {
	log := logger.New(&logger.Config{Level: logger.InfoLevel, Format: "json", Output: "stdout"})

	handler := Logger(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"appended":1}`))
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/memory/u1/c1/turns", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Errorf("status = %v, want %v", w.Code, http.StatusAccepted)
	}
	if w.Body.String() != `{"appended":1}` {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestLoggerEmitsAccessLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "access.log")
	log := logger.New(&logger.Config{Level: logger.InfoLevel, Format: "json", Output: path})

	handler := Logger(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/memory/u1/c1/recent", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	_ = log.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read access log: %v", err)
	}
	line := string(data)
	for _, want := range []string{`"method":"GET"`, `"path":"/api/v1/memory/u1/c1/recent"`, `"status":404`} {
		if !strings.Contains(line, want) {
			t.Errorf("access line missing %s: %s", want, line)
		}
	}
}

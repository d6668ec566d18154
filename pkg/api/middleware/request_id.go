package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// contextKey keeps our context values from colliding with other packages.
type contextKey string

const requestIDKey contextKey = "request_id"

// RequestID propagates the caller's X-Request-ID header, generating a
// fresh UUID when the caller did not send one. The ID is stored in the
// request context and echoed back on the response.
func RequestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Request-ID")
			if id == "" {
				id = uuid.New().String()
			}

			w.Header().Set("X-Request-ID", id)
			ctx := context.WithValue(r.Context(), requestIDKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetRequestID returns the request ID stored by RequestID, or "".
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/mnemo/mnemo/pkg/api/response"
)

// Timeout bounds every request with a deadline. Handlers that respect
// their context stop early; the client gets a 504 either way.
func Timeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()

			done := make(chan struct{})
			go func() {
				defer close(done)
				next.ServeHTTP(w, r.WithContext(ctx))
			}()

			select {
			case <-done:
			case <-ctx.Done():
				requestID := GetRequestID(r.Context())
				response.Error(w, http.StatusGatewayTimeout,
					response.ErrCodeGatewayTimeout, "request timed out", requestID)
			}
		})
	}
}

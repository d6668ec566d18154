package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/mnemo/mnemo/pkg/api/response"
	"github.com/mnemo/mnemo/pkg/logger"
)

// Recovery turns handler panics into 500 responses. The panic value and
// stack are logged, not echoed to the client.
func Recovery(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}

				log.Error("Panic recovered",
					"panic", rec,
					"method", r.Method,
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				)

				requestID := GetRequestID(r.Context())
				if requestID == "" {
					requestID = r.Header.Get("X-Request-ID")
				}
				response.Error(w, http.StatusInternalServerError,
					response.ErrCodeInternalServer, "internal server error", requestID)
			}()

			next.ServeHTTP(w, r)
		})
	}
}

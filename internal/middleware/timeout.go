package middleware

import (
	"context"
	"net/http"
	"time"
)

// DefaultRequestTimeout bounds how long any single request may run.
const DefaultRequestTimeout = 30 * time.Second

// Timeout creates a middleware that enforces a timeout on request
// handlers. The request context is cancelled as well so database calls
// give up together with the response.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			handler := http.TimeoutHandler(next, timeout, "Request Timeout")
			handler.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

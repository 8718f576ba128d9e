package middleware

import (
	"net/http"
)

// DefaultMaxRequestSize caps request bodies at 1MB. Todo titles and
// comments are capped far below this; anything larger is hostile.
const DefaultMaxRequestSize int64 = 1 << 20

// MaxRequestSize limits the size of request bodies.
func MaxRequestSize(maxBytes int64) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxRequestSize
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Reject early when the declared length already exceeds the cap
			if r.ContentLength > maxBytes {
				http.Error(w, "Request Entity Too Large", http.StatusRequestEntityTooLarge)
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			defer r.Body.Close()

			next.ServeHTTP(w, r)
		})
	}
}

package middleware

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// ErrorHandler creates panic recovery middleware. Panic details are
// logged server-side; the client sees the API's usual message shape.
func ErrorHandler(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic_recovered",
						zap.Any("error", err),
						zap.String("path", r.URL.Path),
						zap.String("method", r.Method),
					)

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					response := map[string]string{"message": "An unexpected error occurred."}
					if err := json.NewEncoder(w).Encode(response); err != nil {
						logger.Error("failed_to_encode_error_response",
							zap.Error(err),
							zap.String("path", r.URL.Path),
						)
					}
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Pinger is any backing service that can report liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingerFunc adapts a function to the Pinger interface.
type PingerFunc func(ctx context.Context) error

func (f PingerFunc) Ping(ctx context.Context) error { return f(ctx) }

// HealthChecker handles health check requests
type HealthChecker struct {
	checks map[string]Pinger
}

// NewHealthChecker creates a health checker over the named backing
// services.
func NewHealthChecker(checks map[string]Pinger) *HealthChecker {
	return &HealthChecker{checks: checks}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// HealthCheck handles the /healthz endpoint. Basic mode reports that the
// process is up; ?mode=extended pings every backing service.
func (h *HealthChecker) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	statusCode := http.StatusOK
	if r.URL.Query().Get("mode") == "extended" {
		response.Checks = make(map[string]string, len(h.checks))
		for name, pinger := range h.checks {
			if err := h.ping(r.Context(), pinger); err != nil {
				response.Status = "unhealthy"
				response.Checks[name] = "unhealthy: " + err.Error()
			} else {
				response.Checks[name] = "healthy"
			}
		}
		if response.Status == "unhealthy" {
			statusCode = http.StatusServiceUnavailable
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(response)
}

func (h *HealthChecker) ping(ctx context.Context, pinger Pinger) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return pinger.Ping(ctx)
}

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthCheckBasic(t *testing.T) {
	t.Parallel()

	checker := NewHealthChecker(map[string]Pinger{
		"database": PingerFunc(func(ctx context.Context) error { return errors.New("down") }),
	})

	r := httptest.NewRequest("GET", "/healthz", nil)
	w := httptest.NewRecorder()
	checker.HealthCheck(w, r)

	// Basic mode never touches backing services.
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "healthy" {
		t.Errorf("status = %q, want healthy", resp.Status)
	}
	if resp.Checks != nil {
		t.Errorf("basic mode should not report checks, got %v", resp.Checks)
	}
}

func TestHealthCheckExtended(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		checks     map[string]Pinger
		wantStatus int
		wantHealth string
	}{
		{
			name: "all healthy",
			checks: map[string]Pinger{
				"database": PingerFunc(func(ctx context.Context) error { return nil }),
				"cache":    PingerFunc(func(ctx context.Context) error { return nil }),
			},
			wantStatus: http.StatusOK,
			wantHealth: "healthy",
		},
		{
			name: "one backing service down",
			checks: map[string]Pinger{
				"database": PingerFunc(func(ctx context.Context) error { return nil }),
				"queue":    PingerFunc(func(ctx context.Context) error { return errors.New("amqp gone") }),
			},
			wantStatus: http.StatusServiceUnavailable,
			wantHealth: "unhealthy",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := httptest.NewRequest("GET", "/healthz?mode=extended", nil)
			w := httptest.NewRecorder()
			NewHealthChecker(tt.checks).HealthCheck(w, r)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			var resp HealthResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatal(err)
			}
			if resp.Status != tt.wantHealth {
				t.Errorf("status = %q, want %q", resp.Status, tt.wantHealth)
			}
			if len(resp.Checks) != len(tt.checks) {
				t.Errorf("got %d checks, want %d", len(resp.Checks), len(tt.checks))
			}
		})
	}
}

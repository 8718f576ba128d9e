package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogging(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		method        string
		path          string
		handlerStatus int
	}{
		{"GET request", "GET", "/api/todos", http.StatusOK},
		{"POST request", "POST", "/api/todos", http.StatusCreated},
		{"404 request", "GET", "/notfound", http.StatusNotFound},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			core, logs := observer.New(zap.InfoLevel)
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.handlerStatus)
			})

			req := httptest.NewRequest(tt.method, tt.path, nil)
			w := httptest.NewRecorder()

			Logging(zap.New(core))(handler).ServeHTTP(w, req)

			resp := w.Result()
			defer resp.Body.Close()

			if resp.StatusCode != tt.handlerStatus {
				t.Errorf("Expected status %d, got %d", tt.handlerStatus, resp.StatusCode)
			}

			entries := logs.FilterMessage("http_request").All()
			if len(entries) != 1 {
				t.Fatalf("Expected one http_request log entry, got %d", len(entries))
			}
			fields := entries[0].ContextMap()
			if fields["method"] != tt.method {
				t.Errorf("Logged method = %v, want %s", fields["method"], tt.method)
			}
			if fields["status_code"] != int64(tt.handlerStatus) {
				t.Errorf("Logged status_code = %v, want %d", fields["status_code"], tt.handlerStatus)
			}
		})
	}
}

func TestLoggingResponseWriter(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("test"))
	})

	req := httptest.NewRequest("GET", "/api/todos", nil)
	w := httptest.NewRecorder()

	Logging(zap.NewNop())(handler).ServeHTTP(w, req)

	resp := w.Result()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Errorf("Expected status 201, got %d", resp.StatusCode)
	}
}

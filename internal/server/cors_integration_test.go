package server

import (
	"net/http"
	"testing"
)

func TestCORSIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	cfg := newTestConfig()
	cfg.Security.CORS.Enabled = true
	cfg.Security.CORS.AllowedOrigins = []string{"https://allowed.example"}
	cfg.Security.CORS.AllowedMethods = []string{"GET", "OPTIONS"}
	cfg.Security.CORS.AllowedHeaders = []string{"Content-Type"}
	cfg.Security.CORS.MaxAge = 300

	ts, cleanup := startTestServer(t, cfg)
	defer cleanup()

	tests := []struct {
		name           string
		method         string
		origin         string
		preflight      bool
		expectedStatus int
		expectedOrigin string
	}{
		{
			name:           "simple request from allowed origin",
			method:         http.MethodGet,
			origin:         "https://allowed.example",
			expectedStatus: http.StatusOK,
			expectedOrigin: "https://allowed.example",
		},
		{
			name:           "simple request from unknown origin",
			method:         http.MethodGet,
			origin:         "https://unknown.example",
			expectedStatus: http.StatusOK,
		},
		{
			name:           "preflight from allowed origin",
			method:         http.MethodOptions,
			origin:         "https://allowed.example",
			preflight:      true,
			expectedStatus: http.StatusNoContent,
			expectedOrigin: "https://allowed.example",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, ts.baseURL+"/", nil)
			if err != nil {
				t.Fatalf("Failed to build request: %v", err)
			}
			req.Header.Set("Origin", tt.origin)
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", "GET")
			}

			resp, err := ts.client.Do(req)
			if err != nil {
				t.Fatalf("Request failed: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, resp.StatusCode)
			}
			if got := resp.Header.Get("Access-Control-Allow-Origin"); got != tt.expectedOrigin {
				t.Errorf("Expected allow origin %q, got %q", tt.expectedOrigin, got)
			}
			if tt.preflight && resp.Header.Get("Access-Control-Max-Age") != "300" {
				t.Errorf("Expected max age 300, got %q", resp.Header.Get("Access-Control-Max-Age"))
			}
		})
	}
}

package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/vetled/store/internal/config"
	"github.com/vetled/store/internal/hotreload"
	"github.com/vetled/store/internal/oauth"
	"github.com/vetled/store/internal/observability"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// namedRenderer lists a fixed set of views.
type namedRenderer struct {
	recordingRenderer
	names []string
}

func (n *namedRenderer) Names() []string { return n.names }

func TestServer_ObservabilityEndpoints(t *testing.T) {
	srv := newTestServer(t, newTestConfig())
	handler := srv.buildHandler()

	tests := []struct {
		name           string
		endpoint       string
		expectedStatus int
		contentType    string
	}{
		{
			name:           "health endpoint",
			endpoint:       "/health",
			expectedStatus: http.StatusOK,
			contentType:    "application/json",
		},
		{
			name:           "ready endpoint",
			endpoint:       "/ready",
			expectedStatus: http.StatusOK,
			contentType:    "application/json",
		},
		{
			name:           "metrics endpoint",
			endpoint:       "/metrics",
			expectedStatus: http.StatusOK,
			contentType:    "text/plain",
		},
		{
			name:           "api description",
			endpoint:       "/openapi.json",
			expectedStatus: http.StatusOK,
			contentType:    "application/json",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serveRequest(handler, http.MethodGet, tt.endpoint)

			if rr.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, rr.Code)
			}
			if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, tt.contentType) {
				t.Errorf("Expected content type %s, got %s", tt.contentType, ct)
			}
		})
	}
}

func TestServer_HealthPayload(t *testing.T) {
	srv := newTestServer(t, newTestConfig())
	rr := serveRequest(srv.buildHandler(), http.MethodGet, "/health")

	var health observability.HealthStatus
	if err := json.Unmarshal(rr.Body.Bytes(), &health); err != nil {
		t.Fatalf("Failed to decode health: %v", err)
	}
	if health.Status != "healthy" {
		t.Errorf("Expected healthy, got %s", health.Status)
	}
	if health.Version == "" || health.Uptime == "" {
		t.Errorf("Expected version and uptime, got %+v", health)
	}
	if !health.Checks["views"] || !health.Checks["apidoc"] {
		t.Errorf("Expected passing checks, got %v", health.Checks)
	}
}

func TestServer_ReadinessWithoutIndexView(t *testing.T) {
	srv := newTestServer(t, newTestConfig(), WithRenderer(&namedRenderer{names: []string{"other.html"}}))
	handler := srv.buildHandler()

	rr := serveRequest(handler, http.MethodGet, "/ready")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("Expected 503, got %d", rr.Code)
	}
	var health observability.HealthStatus
	if err := json.Unmarshal(rr.Body.Bytes(), &health); err != nil {
		t.Fatalf("Failed to decode readiness: %v", err)
	}
	if health.Status != "not ready" || health.Checks["views"] {
		t.Errorf("Unexpected readiness payload %+v", health)
	}

	// Liveness stays 200 and reports the failing check.
	rr = serveRequest(handler, http.MethodGet, "/health")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"unhealthy"`) {
		t.Errorf("Expected 200 unhealthy, got %d %s", rr.Code, rr.Body.String())
	}
}

func TestServer_MetricsRecordTraffic(t *testing.T) {
	exchanger := &fakeExchanger{token: &oauth.TokenResponse{AccessToken: "at"}}
	accounts := &fakeAccounts{body: []byte(`{"accounts":[]}`)}
	srv := newTestServer(t, newTestConfig(), WithTokenExchanger(exchanger), WithAccountsFetcher(accounts))
	handler := srv.buildHandler()

	serveRequest(handler, http.MethodGet, "/")
	serveRequest(handler, http.MethodGet, "/callback?code=c&state=s")
	serveRequest(handler, http.MethodGet, "/callback?state=s")

	rr := serveRequest(handler, http.MethodGet, "/metrics")
	body := rr.Body.String()

	for _, want := range []string{
		`http_requests_total{endpoint="/",method="GET",status_code="200"} 1`,
		`http_requests_total{endpoint="/callback",method="GET",status_code="200"} 1`,
		`http_requests_total{endpoint="/callback",method="GET",status_code="400"} 1`,
		`sparebank_requests_total{operation="token_exchange",outcome="success"} 1`,
		`sparebank_requests_total{operation="accounts",outcome="success"} 1`,
		`view_renders_total{outcome="success",view="index.html"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("Expected metrics to contain %s", want)
		}
	}
}

func TestServer_Tracing(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tracer := observability.NewTracerWithExporter(config.TracingConfig{ServiceName: "store-test"}, exporter)

	exchanger := &fakeExchanger{token: &oauth.TokenResponse{AccessToken: "at"}}
	accounts := &fakeAccounts{body: []byte(`{}`)}
	srv := newTestServer(t, newTestConfig(),
		WithTracer(tracer),
		WithTokenExchanger(exchanger),
		WithAccountsFetcher(accounts),
	)

	serveRequest(srv.buildHandler(), http.MethodGet, "/callback?code=c&state=s")

	names := map[string]bool{}
	for _, span := range exporter.GetSpans() {
		names[span.Name] = true
	}
	for _, want := range []string{"oauth_callback", "oauth.token_exchange", "banking.get_accounts"} {
		if !names[want] {
			t.Errorf("Expected span %s, got %v", want, names)
		}
	}
}

func TestServer_OnReload(t *testing.T) {
	srv := newTestServer(t, newTestConfig())

	err := srv.OnReload(context.Background(), []hotreload.Result{
		{Component: "views", Events: 1},
		{Component: "views", Events: 2, Err: errBoom},
	})
	if !errors.Is(err, errBoom) {
		t.Errorf("Expected the failed reload to be reported, got %v", err)
	}

	resp := serveRequest(srv.metrics.Handler(), http.MethodGet, "/metrics")
	body, _ := io.ReadAll(resp.Body)
	for _, want := range []string{
		`hot_reloads_total{component="views",outcome="success"} 1`,
		`hot_reloads_total{component="views",outcome="error"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("Expected metrics to contain %s", want)
		}
	}
}

func TestServer_Reloadables(t *testing.T) {
	srv := newTestServer(t, newTestConfig())
	reloadables := srv.Reloadables()
	if len(reloadables) != 1 || reloadables[0].Name() != "views" {
		t.Errorf("Expected the template renderer to be reloadable, got %v", reloadables)
	}

	srv = newTestServer(t, newTestConfig(), WithRenderer(&recordingRenderer{}))
	if len(srv.Reloadables()) != 0 {
		t.Error("A plain renderer is not reloadable")
	}
}

func TestServer_CustomMetricsPathIsNotRateLimited(t *testing.T) {
	cfg := newTestConfig()
	cfg.Observability.Metrics.Path = "/internal/metrics"
	cfg.Security.RateLimit.Enabled = true
	cfg.Security.RateLimit.ByIP = &config.RateLimit{RequestsPerSecond: 1, BurstSize: 1, WindowSize: time.Minute}

	handler := newTestServer(t, cfg).buildHandler()

	for i := 0; i < 5; i++ {
		rr := serveRequest(handler, http.MethodGet, "/internal/metrics")
		if rr.Code != http.StatusOK {
			t.Fatalf("Request %d: expected status 200, got %d", i, rr.Code)
		}
	}

	if rr := serveRequest(handler, http.MethodGet, "/openapi.json"); rr.Code != http.StatusOK {
		t.Fatalf("Expected first app request to pass, got %d", rr.Code)
	}
	if rr := serveRequest(handler, http.MethodGet, "/openapi.json"); rr.Code != http.StatusTooManyRequests {
		t.Errorf("Expected app routes to stay rate limited, got %d", rr.Code)
	}
}

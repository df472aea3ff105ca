package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "localhost:8080", cfg.GetServerAddress())
	assert.Equal(t, "localhost:9090", cfg.GetMetricsAddress())
	assert.False(t, cfg.Sparebank.OAuth.Configured(), "no credentials ship by default")
	assert.False(t, cfg.HotReload.Active(cfg.Views), "hot reload needs a templates dir")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		errText string
	}{
		{
			name:    "empty host",
			mutate:  func(c *Config) { c.Server.Host = "" },
			errText: "host cannot be empty",
		},
		{
			name:    "non numeric port",
			mutate:  func(c *Config) { c.Server.Port = "http" },
			errText: "port must be a valid port number",
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Server.Port = "70000" },
			errText: "port must be between 1 and 65535",
		},
		{
			name:    "port collision",
			mutate:  func(c *Config) { c.Server.MetricsPort = c.Server.Port },
			errText: "cannot be the same",
		},
		{
			name:    "zero read timeout",
			mutate:  func(c *Config) { c.Server.ReadTimeout = 0 },
			errText: "read_timeout must be positive",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Observability.Logging.Level = "verbose" },
			errText: "invalid level",
		},
		{
			name:    "bad log format",
			mutate:  func(c *Config) { c.Observability.Logging.Format = "xml" },
			errText: "invalid format",
		},
		{
			name:    "metrics path without slash",
			mutate:  func(c *Config) { c.Observability.Metrics.Path = "metrics" },
			errText: "path must start with /",
		},
		{
			name:    "metrics path on the callback route",
			mutate:  func(c *Config) { c.Observability.Metrics.Path = "/callback" },
			errText: "path /callback is reserved",
		},
		{
			name:    "metrics path on the health route",
			mutate:  func(c *Config) { c.Observability.Metrics.Path = "/health" },
			errText: "path /health is reserved",
		},
		{
			name:    "metrics path on the ready route",
			mutate:  func(c *Config) { c.Observability.Metrics.Path = "/ready" },
			errText: "path /ready is reserved",
		},
		{
			name:    "metrics path on the API description",
			mutate:  func(c *Config) { c.Observability.Metrics.Path = "/openapi.json" },
			errText: "path /openapi.json is reserved",
		},
		{
			name:    "metrics path on the landing page",
			mutate:  func(c *Config) { c.Observability.Metrics.Path = "/" },
			errText: "path / is reserved",
		},
		{
			name:    "metrics path with wildcard",
			mutate:  func(c *Config) { c.Observability.Metrics.Path = "/{name}" },
			errText: "must not contain wildcards",
		},
		{
			name: "rate limit with bad global",
			mutate: func(c *Config) {
				c.Security.RateLimit.Enabled = true
				c.Security.RateLimit.Global = &RateLimit{RequestsPerSecond: 0, BurstSize: 1, WindowSize: time.Second}
			},
			errText: "requests_per_second must be positive",
		},
		{
			name: "rate limit with unknown strategy",
			mutate: func(c *Config) {
				c.Security.RateLimit.Enabled = true
				c.Security.RateLimit.Strategy = "api_key"
			},
			errText: "strategy must be",
		},
		{
			name: "cors without origins",
			mutate: func(c *Config) {
				c.Security.CORS.Enabled = true
				c.Security.CORS.AllowedOrigins = nil
			},
			errText: "allowed_origins must not be empty",
		},
		{
			name:    "token uri without scheme",
			mutate:  func(c *Config) { c.Sparebank.OAuth.TokenURI = "api.sparebank1.no/oauth/token" },
			errText: "oauth.token_uri must use http or https",
		},
		{
			name:    "half configured credentials",
			mutate:  func(c *Config) { c.Sparebank.OAuth.ClientID = "only-id" },
			errText: "must be set together",
		},
		{
			name:    "empty accept header",
			mutate:  func(c *Config) { c.Sparebank.API.Accept = "" },
			errText: "api.accept cannot be empty",
		},
		{
			name:    "negative debounce",
			mutate:  func(c *Config) { c.HotReload.Debounce = -time.Second },
			errText: "debounce must be non-negative",
		},
		{
			name: "tls without cert",
			mutate: func(c *Config) {
				c.TLS.Enabled = true
			},
			errText: "cert_file is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errText)
		})
	}
}

func TestTLSConfig_Validate(t *testing.T) {
	dir := t.TempDir()
	certFile := filepath.Join(dir, "cert.pem")
	keyFile := filepath.Join(dir, "key.pem")
	require.NoError(t, os.WriteFile(certFile, []byte("cert"), 0o600))
	require.NoError(t, os.WriteFile(keyFile, []byte("key"), 0o600))

	valid := TLSConfig{Enabled: true, CertFile: certFile, KeyFile: keyFile, MinVersion: "1.3"}
	assert.NoError(t, valid.Validate())

	missing := TLSConfig{Enabled: true, CertFile: filepath.Join(dir, "nope.pem"), KeyFile: keyFile}
	assert.ErrorContains(t, missing.Validate(), "cert file not found")

	badVersion := TLSConfig{Enabled: true, CertFile: certFile, KeyFile: keyFile, MinVersion: "1.0"}
	assert.ErrorContains(t, badVersion.Validate(), "min_version")
}

func TestTLSConfig_TLSMinVersion(t *testing.T) {
	assert.Equal(t, uint16(0x0304), TLSConfig{MinVersion: "1.3"}.TLSMinVersion())
	assert.Equal(t, uint16(0x0303), TLSConfig{MinVersion: ""}.TLSMinVersion())
}

func TestOAuthConfig_Configured(t *testing.T) {
	assert.True(t, OAuthConfig{ClientID: "id", ClientSecret: "secret"}.Configured())
	assert.False(t, OAuthConfig{ClientID: "id"}.Configured())
	assert.False(t, OAuthConfig{}.Configured())
}

func TestHotReloadConfig_Active(t *testing.T) {
	h := DefaultHotReloadConfig()
	assert.True(t, h.Active(ViewsConfig{TemplatesDir: "/srv/templates"}))
	assert.False(t, h.Active(ViewsConfig{}))

	h.Enabled = false
	assert.False(t, h.Active(ViewsConfig{TemplatesDir: "/srv/templates"}))
}

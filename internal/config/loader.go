package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/vetled/store/internal/constants"
	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration with precedence:
// 1. Explicit CLI flags (highest priority)
// 2. Environment variables
// 3. Configuration file values
// 4. Default configuration values (lowest priority)
func LoadConfig(configFile string, cliFlags *CLIFlags) (*Config, error) {
	config := DefaultConfig()

	if configFile != "" {
		if err := loadFromFile(configFile, config); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	loadFromEnv(config)

	if cliFlags != nil {
		overrideWithCLI(config, cliFlags)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// CLIFlags contains CLI flag values that can override configuration.
// A value only wins when its flag was explicitly set on Flags
// (pflag.CommandLine when nil).
type CLIFlags struct {
	Flags *pflag.FlagSet

	Host              *string
	Port              *string
	MetricsPort       *string
	ReadTimeout       *time.Duration
	WriteTimeout      *time.Duration
	IdleTimeout       *time.Duration
	MaxRequestSize    *int64
	ShutdownTimeout   *time.Duration
	LogLevel          *string
	LogFormat         *string
	RateLimitEnabled  *bool
	RateLimitRPS      *int
	TemplatesDir      *string
	HotReload         *bool
	HotReloadDebounce *time.Duration
	TLSEnabled        *bool
	TLSCertFile       *string
	TLSKeyFile        *string
	ClientID          *string
	ClientSecret      *string
	RedirectURI       *string
	TokenURI          *string
	AuthorizeURI      *string
	FinInst           *string
	AccountsURL       *string
}

func (f *CLIFlags) changed(name string) bool {
	fs := f.Flags
	if fs == nil {
		fs = pflag.CommandLine
	}
	flag := fs.Lookup(name)
	return flag != nil && flag.Changed
}

// loadFromFile decodes a YAML or JSON file on top of config. Keys absent
// from the file keep their current values.
func loadFromFile(filePath string, config *Config) error {
	if !filepath.IsAbs(filePath) {
		absPath, err := filepath.Abs(filePath)
		if err != nil {
			return fmt.Errorf("failed to get absolute path for %s: %w", filePath, err)
		}
		filePath = absPath
	}

	if err := validateFilePath(filePath); err != nil {
		return fmt.Errorf("invalid config file path %s: %w", filePath, err)
	}

	data, err := os.ReadFile(filePath) // #nosec G304 - file path validated by validateFilePath()
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", filePath, err)
	}

	ext := filepath.Ext(filePath)
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, config)
	case ".json":
		err = json.Unmarshal(data, config)
	default:
		return fmt.Errorf("unsupported config file format: %s", ext)
	}

	if err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", filePath, err)
	}

	return nil
}

// loadFromEnv loads configuration from environment variables
func loadFromEnv(config *Config) {
	// Server configuration
	if val := os.Getenv(constants.EnvHost); val != "" {
		config.Server.Host = val
	}
	if val := os.Getenv(constants.EnvPort); val != "" {
		config.Server.Port = val
	}
	if val := os.Getenv(constants.EnvMetricsPort); val != "" {
		config.Server.MetricsPort = val
	}
	envDuration(constants.EnvReadTimeout, &config.Server.ReadTimeout)
	envDuration(constants.EnvWriteTimeout, &config.Server.WriteTimeout)
	envDuration(constants.EnvIdleTimeout, &config.Server.IdleTimeout)
	envDuration(constants.EnvShutdownTimeout, &config.Server.ShutdownTimeout)
	if val := os.Getenv(constants.EnvMaxRequestSize); val != "" {
		if size, err := strconv.ParseInt(val, 10, 64); err == nil {
			config.Server.MaxRequestSize = size
		}
	}

	// Logging
	if val := os.Getenv(constants.EnvLogLevel); val != "" {
		config.Observability.Logging.Level = val
	}
	if val := os.Getenv(constants.EnvLogFormat); val != "" {
		config.Observability.Logging.Format = val
	}

	// Views and hot reload
	if val := os.Getenv(constants.EnvTemplatesDir); val != "" {
		config.Views.TemplatesDir = val
	}
	envBool(constants.EnvHotReload, &config.HotReload.Enabled)
	envDuration(constants.EnvHotReloadDebounce, &config.HotReload.Debounce)

	// TLS
	envBool(constants.EnvTLSEnabled, &config.TLS.Enabled)
	if val := os.Getenv(constants.EnvTLSCertFile); val != "" {
		config.TLS.CertFile = val
	}
	if val := os.Getenv(constants.EnvTLSKeyFile); val != "" {
		config.TLS.KeyFile = val
	}

	// Sparebank
	if val := os.Getenv(constants.EnvOAuthClientID); val != "" {
		config.Sparebank.OAuth.ClientID = val
	}
	if val := os.Getenv(constants.EnvOAuthClientSecret); val != "" {
		config.Sparebank.OAuth.ClientSecret = val
	}
	if val := os.Getenv(constants.EnvOAuthRedirectURI); val != "" {
		config.Sparebank.OAuth.RedirectURI = val
	}
	if val := os.Getenv(constants.EnvOAuthTokenURI); val != "" {
		config.Sparebank.OAuth.TokenURI = val
	}
	if val := os.Getenv(constants.EnvOAuthAuthorizeURI); val != "" {
		config.Sparebank.OAuth.AuthorizeURI = val
	}
	if val := os.Getenv(constants.EnvOAuthFinInst); val != "" {
		config.Sparebank.OAuth.FinInst = val
	}
	if val := os.Getenv(constants.EnvAccountsURL); val != "" {
		config.Sparebank.API.AccountsURL = val
	}
}

func envDuration(key string, target *time.Duration) {
	if val := os.Getenv(key); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			*target = duration
		}
	}
}

func envBool(key string, target *bool) {
	if val := os.Getenv(key); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			*target = enabled
		}
	}
}

// overrideWithCLI overrides configuration with CLI flag values
// Only explicitly set CLI flags override other configuration sources
func overrideWithCLI(config *Config, flags *CLIFlags) {
	// Server configuration
	if flags.Host != nil && flags.changed("host") {
		config.Server.Host = *flags.Host
	}
	if flags.Port != nil && flags.changed("port") {
		config.Server.Port = *flags.Port
	}
	if flags.MetricsPort != nil && flags.changed("metrics-port") {
		config.Server.MetricsPort = *flags.MetricsPort
	}
	if flags.ReadTimeout != nil && flags.changed("read-timeout") {
		config.Server.ReadTimeout = *flags.ReadTimeout
	}
	if flags.WriteTimeout != nil && flags.changed("write-timeout") {
		config.Server.WriteTimeout = *flags.WriteTimeout
	}
	if flags.IdleTimeout != nil && flags.changed("idle-timeout") {
		config.Server.IdleTimeout = *flags.IdleTimeout
	}
	if flags.MaxRequestSize != nil && flags.changed("max-request-size") {
		config.Server.MaxRequestSize = *flags.MaxRequestSize
	}
	if flags.ShutdownTimeout != nil && flags.changed("shutdown-timeout") {
		config.Server.ShutdownTimeout = *flags.ShutdownTimeout
	}

	// Logging
	if flags.LogLevel != nil && flags.changed("log-level") {
		config.Observability.Logging.Level = *flags.LogLevel
	}
	if flags.LogFormat != nil && flags.changed("log-format") {
		config.Observability.Logging.Format = *flags.LogFormat
	}

	// Rate limiting
	if flags.RateLimitEnabled != nil && flags.changed("rate-limit-enabled") {
		config.Security.RateLimit.Enabled = *flags.RateLimitEnabled
	}
	if flags.RateLimitRPS != nil && flags.changed("rate-limit-rps") {
		if config.Security.RateLimit.Global == nil {
			config.Security.RateLimit.Global = &RateLimit{
				RequestsPerSecond: *flags.RateLimitRPS,
				BurstSize:         2 * *flags.RateLimitRPS,
				WindowSize:        time.Minute,
			}
		} else {
			config.Security.RateLimit.Global.RequestsPerSecond = *flags.RateLimitRPS
		}
	}

	// Views and hot reload
	if flags.TemplatesDir != nil && flags.changed("templates-dir") {
		config.Views.TemplatesDir = *flags.TemplatesDir
	}
	if flags.HotReload != nil && flags.changed("hot-reload") {
		config.HotReload.Enabled = *flags.HotReload
	}
	if flags.HotReloadDebounce != nil && flags.changed("hot-reload-debounce") {
		config.HotReload.Debounce = *flags.HotReloadDebounce
	}

	// TLS configuration
	if flags.TLSEnabled != nil && flags.changed("tls-enabled") {
		config.TLS.Enabled = *flags.TLSEnabled
	}
	if flags.TLSCertFile != nil && flags.changed("tls-cert-file") {
		config.TLS.CertFile = *flags.TLSCertFile
	}
	if flags.TLSKeyFile != nil && flags.changed("tls-key-file") {
		config.TLS.KeyFile = *flags.TLSKeyFile
	}

	// Sparebank
	if flags.ClientID != nil && flags.changed("client-id") {
		config.Sparebank.OAuth.ClientID = *flags.ClientID
	}
	if flags.ClientSecret != nil && flags.changed("client-secret") {
		config.Sparebank.OAuth.ClientSecret = *flags.ClientSecret
	}
	if flags.RedirectURI != nil && flags.changed("redirect-uri") {
		config.Sparebank.OAuth.RedirectURI = *flags.RedirectURI
	}
	if flags.TokenURI != nil && flags.changed("token-uri") {
		config.Sparebank.OAuth.TokenURI = *flags.TokenURI
	}
	if flags.AuthorizeURI != nil && flags.changed("authorize-uri") {
		config.Sparebank.OAuth.AuthorizeURI = *flags.AuthorizeURI
	}
	if flags.FinInst != nil && flags.changed("fin-inst") {
		config.Sparebank.OAuth.FinInst = *flags.FinInst
	}
	if flags.AccountsURL != nil && flags.changed("accounts-url") {
		config.Sparebank.API.AccountsURL = *flags.AccountsURL
	}
}

// validateFilePath checks if the file path is safe to read
func validateFilePath(filePath string) error {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}

	cleanPath := filepath.Clean(absPath)
	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("path contains directory traversal attempts")
	}

	return nil
}

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/pflag"
	"github.com/vetled/store/internal/config"
	"github.com/vetled/store/internal/constants"
	"github.com/vetled/store/internal/hotreload"
	"github.com/vetled/store/internal/observability"
	"github.com/vetled/store/internal/server"
	"go.uber.org/zap"
)

func main() {
	configFile := pflag.String("config", "", "Path to configuration file (YAML or JSON)")
	host := pflag.String("host", "localhost", "Host to run the server on")
	port := pflag.String("port", "8080", "Port to run the server on")
	metricsPort := pflag.String("metrics-port", "9090", "Port to run the metrics server on")

	// Server configuration
	readTimeout := pflag.Duration("read-timeout", constants.ServerReadTimeout, "HTTP server read timeout")
	writeTimeout := pflag.Duration("write-timeout", constants.ServerWriteTimeout, "HTTP server write timeout")
	idleTimeout := pflag.Duration("idle-timeout", constants.ServerIdleTimeout, "HTTP server idle timeout")
	maxRequestSize := pflag.Int64("max-request-size", constants.ServerMaxRequestSize, "Maximum request size in bytes")
	shutdownTimeout := pflag.Duration("shutdown-timeout", constants.ServerShutdownTimeout, "Graceful shutdown timeout")

	// Logging
	logLevel := pflag.String("log-level", "info", "Log level: debug, info, warn, error")
	logFormat := pflag.String("log-format", "json", "Log format: json, console")

	// Security
	rateLimitEnabled := pflag.Bool("rate-limit-enabled", false, "Enable per-IP rate limiting")
	rateLimitRPS := pflag.Int("rate-limit-rps", 100, "Global rate limit requests per second")

	// Views and hot reload
	templatesDir := pflag.String("templates-dir", "", "Directory with *.html view templates (default: built-in views)")
	hotReload := pflag.Bool("hot-reload", true, "Reload view templates when files in --templates-dir change")
	hotReloadDebounce := pflag.Duration("hot-reload-debounce", hotreload.DefaultDebounce, "Debounce time for hot reload events")

	// TLS
	tlsEnabled := pflag.Bool("tls-enabled", false, "Serve HTTPS")
	tlsCertFile := pflag.String("tls-cert-file", "", "TLS certificate file")
	tlsKeyFile := pflag.String("tls-key-file", "", "TLS private key file")

	// Sparebank 1
	clientID := pflag.String("client-id", "", "Sparebank 1 OAuth client id")
	clientSecret := pflag.String("client-secret", "", "Sparebank 1 OAuth client secret")
	redirectURI := pflag.String("redirect-uri", constants.DefaultRedirectURI, "OAuth redirect URI registered with Sparebank 1")
	tokenURI := pflag.String("token-uri", constants.SparebankTokenURI, "Sparebank 1 token endpoint")
	authorizeURI := pflag.String("authorize-uri", constants.SparebankAuthorizeURI, "Sparebank 1 authorization endpoint")
	finInst := pflag.String("fin-inst", "", "Financial institution id sent to the authorization endpoint")
	accountsURL := pflag.String("accounts-url", constants.SparebankAccountsURL, "Sparebank 1 accounts endpoint")

	pflag.Usage = printUsage
	pflag.Parse()

	cliFlags := &config.CLIFlags{
		Flags:             pflag.CommandLine,
		Host:              host,
		Port:              port,
		MetricsPort:       metricsPort,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		MaxRequestSize:    maxRequestSize,
		ShutdownTimeout:   shutdownTimeout,
		LogLevel:          logLevel,
		LogFormat:         logFormat,
		RateLimitEnabled:  rateLimitEnabled,
		RateLimitRPS:      rateLimitRPS,
		TemplatesDir:      templatesDir,
		HotReload:         hotReload,
		HotReloadDebounce: hotReloadDebounce,
		TLSEnabled:        tlsEnabled,
		TLSCertFile:       tlsCertFile,
		TLSKeyFile:        tlsKeyFile,
		ClientID:          clientID,
		ClientSecret:      clientSecret,
		RedirectURI:       redirectURI,
		TokenURI:          tokenURI,
		AuthorizeURI:      authorizeURI,
		FinInst:           finInst,
		AccountsURL:       accountsURL,
	}

	// Precedence: CLI > Env > File > Defaults
	cfg, err := config.LoadConfig(*configFile, cliFlags)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Observability.Logging)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	srv, err := server.New(cfg, server.WithLogger(logger))
	if err != nil {
		logger.Fatal("Failed to create server", zap.Error(err))
	}

	var hotReloadManager *hotreload.Manager
	if cfg.HotReload.Active(cfg.Views) {
		hotReloadManager, err = startHotReload(cfg, srv, logger.Logger)
		if err != nil {
			logger.Fatal("Failed to start hot reload", zap.Error(err))
		}
		logger.Info("Hot reload enabled", zap.String("templates_dir", cfg.Views.TemplatesDir))
	}

	if cfg.Security.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.String("strategy", cfg.Security.RateLimit.Strategy),
			zap.Int("rps", cfg.Security.RateLimit.Global.RequestsPerSecond),
		)
	}

	if err := srv.Start(); err != nil {
		logger.Error("Server stopped with error", zap.Error(err))
	}

	if hotReloadManager != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := hotReloadManager.Shutdown(ctx); err != nil {
			logger.Warn("Failed to shutdown hot reload manager", zap.Error(err))
		}
	}
}

// startHotReload watches the templates directory and reloads the server's
// reloadable components on change.
func startHotReload(cfg *config.Config, srv *server.Server, logger *zap.Logger) (*hotreload.Manager, error) {
	manager, err := hotreload.NewManager(logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create hot reload manager: %w", err)
	}

	manager.SetDebounceTime(cfg.HotReload.Debounce)

	if err := manager.AddWatch(cfg.Views.TemplatesDir); err != nil {
		return nil, fmt.Errorf("failed to watch %s: %w", cfg.Views.TemplatesDir, err)
	}
	for _, r := range srv.Reloadables() {
		if err := manager.RegisterReloadable(r); err != nil {
			return nil, fmt.Errorf("failed to register %s: %w", r.Name(), err)
		}
	}
	if err := manager.AddListener("metrics", srv.OnReload); err != nil {
		return nil, fmt.Errorf("failed to add reload listener: %w", err)
	}

	if err := manager.Start(); err != nil {
		return nil, fmt.Errorf("failed to start hot reload manager: %w", err)
	}
	return manager, nil
}

// printUsage prints the usage information
func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [flags]\n\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "Serves the Sparebank 1 landing page and the OAuth callback that lists accounts.\n\n")
	fmt.Fprintf(os.Stderr, "Flags:\n")
	pflag.PrintDefaults()
	fmt.Fprintf(os.Stderr, "\nEnvironment variables:\n")
	fmt.Fprintf(os.Stderr, "  %s, %s, %s\n", constants.EnvHost, constants.EnvPort, constants.EnvMetricsPort)
	fmt.Fprintf(os.Stderr, "  %s, %s, %s\n", constants.EnvReadTimeout, constants.EnvWriteTimeout, constants.EnvIdleTimeout)
	fmt.Fprintf(os.Stderr, "  %s, %s\n", constants.EnvMaxRequestSize, constants.EnvShutdownTimeout)
	fmt.Fprintf(os.Stderr, "  %s, %s\n", constants.EnvLogLevel, constants.EnvLogFormat)
	fmt.Fprintf(os.Stderr, "  %s, %s, %s\n", constants.EnvTemplatesDir, constants.EnvHotReload, constants.EnvHotReloadDebounce)
	fmt.Fprintf(os.Stderr, "  %s, %s, %s\n", constants.EnvTLSEnabled, constants.EnvTLSCertFile, constants.EnvTLSKeyFile)
	fmt.Fprintf(os.Stderr, "  %s, %s\n", constants.EnvOAuthClientID, constants.EnvOAuthClientSecret)
	fmt.Fprintf(os.Stderr, "  %s, %s, %s\n", constants.EnvOAuthRedirectURI, constants.EnvOAuthTokenURI, constants.EnvOAuthAuthorizeURI)
	fmt.Fprintf(os.Stderr, "  %s, %s\n", constants.EnvOAuthFinInst, constants.EnvAccountsURL)
	fmt.Fprintf(os.Stderr, "\nExample usage:\n")
	fmt.Fprintf(os.Stderr, "  %s --client-id abc --client-secret xyz\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  %s --config ./store.yaml --templates-dir ./views\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  %s --tls-enabled --tls-cert-file cert.pem --tls-key-file key.pem --port 8443\n", os.Args[0])
}

package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/vetled/store/internal/apidoc"
	"github.com/vetled/store/internal/banking"
	"github.com/vetled/store/internal/config"
	"github.com/vetled/store/internal/constants"
	"github.com/vetled/store/internal/hotreload"
	"github.com/vetled/store/internal/oauth"
	"github.com/vetled/store/internal/observability"
	"github.com/vetled/store/internal/security"
	"github.com/vetled/store/internal/views"
	"go.uber.org/zap"
)

// TokenExchanger trades an OAuth authorization code for a token.
type TokenExchanger interface {
	ExchangeCodeForToken(ctx context.Context, code, state string) (*oauth.TokenResponse, error)
}

// AccountsFetcher loads the account list for an access token.
type AccountsFetcher interface {
	GetAccounts(ctx context.Context, accessToken string) ([]byte, error)
}

// AuthorizeURLBuilder builds the link that starts the OAuth flow.
type AuthorizeURLBuilder interface {
	AuthorizeURL(state string) string
}

// Server serves the landing page and the OAuth callback, plus the health,
// readiness, API description and metrics endpoints.
type Server struct {
	config        *config.Config
	server        *http.Server
	metricsServer *http.Server

	renderer   views.Renderer
	exchanger  TokenExchanger
	accounts   AccountsFetcher
	authorizer AuthorizeURLBuilder
	apiDoc     *apidoc.Document

	rateLimiter *security.RateLimiter

	logger    *observability.Logger
	metrics   *observability.Metrics
	tracer    *observability.Tracer
	startTime time.Time
}

// Option overrides one of the server's collaborators.
type Option func(*Server)

// WithRenderer replaces the template renderer used for the HTML pages.
func WithRenderer(r views.Renderer) Option {
	return func(s *Server) { s.renderer = r }
}

// WithTokenExchanger replaces the client that trades the callback code for a token.
func WithTokenExchanger(e TokenExchanger) Option {
	return func(s *Server) { s.exchanger = e }
}

// WithAccountsFetcher replaces the client that lists the user's accounts.
func WithAccountsFetcher(f AccountsFetcher) Option {
	return func(s *Server) { s.accounts = f }
}

// WithAuthorizeURLBuilder replaces the builder of the login link on the landing page.
func WithAuthorizeURLBuilder(b AuthorizeURLBuilder) Option {
	return func(s *Server) { s.authorizer = b }
}

// WithLogger sets the logger instead of building one from the logging config.
func WithLogger(l *observability.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithTracer sets the tracer instead of building one from the tracing config.
func WithTracer(t *observability.Tracer) Option {
	return func(s *Server) { s.tracer = t }
}

// New wires a Server from cfg. Collaborators not supplied through opts are
// built from the matching config section.
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		config:    cfg,
		metrics:   observability.NewMetrics(),
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	var err error
	if s.logger == nil {
		s.logger, err = observability.NewLogger(cfg.Observability.Logging)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
	}
	if s.tracer == nil {
		s.tracer, err = observability.NewTracer(cfg.Observability.Tracing)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize tracer: %w", err)
		}
	}

	if s.renderer == nil {
		s.renderer, err = views.NewTemplateRenderer(cfg.Views.TemplatesDir, s.logger.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to load views: %w", err)
		}
	}

	if s.exchanger == nil || s.authorizer == nil {
		svc := oauth.NewService(cfg.Sparebank.OAuth, nil, s.logger.Logger)
		if s.exchanger == nil {
			s.exchanger = svc
		}
		if s.authorizer == nil {
			s.authorizer = svc
		}
		if !svc.Configured() {
			s.logger.Warn("Sparebank OAuth client is not configured, /callback will answer 401")
		}
	}
	if s.accounts == nil {
		s.accounts = banking.NewClient(cfg.Sparebank.API, nil, s.logger.Logger)
	}

	s.apiDoc, err = apidoc.Load(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to load API description: %w", err)
	}

	var skip []string
	if cfg.Observability.Metrics.Enabled {
		skip = append(skip, cfg.Observability.Metrics.Path)
	}
	s.rateLimiter = security.NewRateLimiter(&cfg.Security.RateLimit, s.logger.Logger, skip...)

	return s, nil
}

// Reloadables returns the components that can be reloaded from disk.
func (s *Server) Reloadables() []hotreload.Reloadable {
	var out []hotreload.Reloadable
	if r, ok := s.renderer.(hotreload.Reloadable); ok {
		out = append(out, r)
	}
	return out
}

// OnReload records hot reload outcomes. It is registered as a reload
// listener.
func (s *Server) OnReload(_ context.Context, results []hotreload.Result) error {
	var errs []error
	for _, res := range results {
		s.metrics.RecordReload(res.Component, res.Err)
		if res.Err != nil {
			errs = append(errs, res.Err)
		}
	}
	return errors.Join(errs...)
}

func (s *Server) buildHandler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET "+constants.PathHealth, s.instrument(constants.PathHealth, "health_check", s.healthHandler))
	mux.Handle("GET "+constants.PathReady, s.instrument(constants.PathReady, "readiness_check", s.readinessHandler))
	mux.Handle("GET "+constants.PathAPIDoc, s.instrument(constants.PathAPIDoc, "api_doc", s.apiDoc.ServeHTTP))
	if s.config.Observability.Metrics.Enabled {
		mux.Handle("GET "+s.config.Observability.Metrics.Path, s.metrics.Handler())
	}

	mux.Handle("GET "+constants.PathCallback, s.instrument(constants.PathCallback, "oauth_callback", s.callbackHandler))
	// {$} keeps the root route from matching every other path.
	mux.Handle("GET /{$}", s.instrument(constants.PathRoot, "home", s.homeHandler))

	return s.applyMiddleware(mux)
}

// Start runs the server until SIGINT or SIGTERM.
func (s *Server) Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return s.Run(ctx)
}

// Run listens on the configured addresses and serves until ctx is done,
// then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.GetServerAddress())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.GetServerAddress(), err)
	}

	var metricsLn net.Listener
	if s.config.Observability.Metrics.Enabled && s.config.Server.MetricsPort != "" {
		metricsLn, err = net.Listen("tcp", s.config.GetMetricsAddress())
		if err != nil {
			_ = ln.Close()
			return fmt.Errorf("failed to listen on %s: %w", s.config.GetMetricsAddress(), err)
		}
	}

	return s.serve(ctx, ln, metricsLn)
}

func (s *Server) serve(ctx context.Context, ln, metricsLn net.Listener) error {
	s.server = &http.Server{
		Handler:        s.buildHandler(),
		ReadTimeout:    s.config.Server.ReadTimeout,
		WriteTimeout:   s.config.Server.WriteTimeout,
		IdleTimeout:    s.config.Server.IdleTimeout,
		MaxHeaderBytes: 1 << 20,
		ErrorLog:       zap.NewStdLog(s.logger.Logger),
		ConnState:      s.trackConnection,
	}
	if s.config.TLS.Enabled {
		s.server.TLSConfig = &tls.Config{MinVersion: s.config.TLS.TLSMinVersion()}
	}

	errCh := make(chan error, 2)

	s.logger.Info("Starting server",
		zap.String("addr", ln.Addr().String()),
		zap.Bool("tls", s.config.TLS.Enabled),
		zap.Strings("views", viewNames(s.renderer)),
	)
	s.metrics.SetHealthStatus(true)

	go func() {
		var err error
		if s.config.TLS.Enabled {
			err = s.server.ServeTLS(ln, s.config.TLS.CertFile, s.config.TLS.KeyFile)
		} else {
			err = s.server.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server failed: %w", err)
		}
	}()

	if metricsLn != nil {
		metricsMux := http.NewServeMux()
		metricsMux.Handle(s.config.Observability.Metrics.Path, s.metrics.Handler())
		s.metricsServer = &http.Server{
			Handler:           metricsMux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		s.logger.Info("Starting metrics server", zap.String("addr", metricsLn.Addr().String()))

		go func() {
			if err := s.metricsServer.Serve(metricsLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server failed: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		s.logger.Error("Server stopped unexpectedly", zap.Error(runErr))
	}

	if err := s.shutdown(); err != nil {
		return errors.Join(runErr, err)
	}
	return runErr
}

// shutdown stops both servers in parallel and releases background workers.
func (s *Server) shutdown() error {
	s.logger.Info("Shutting down server...")
	s.metrics.SetHealthStatus(false)

	ctx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	shutdownOne := func(name string, srv *http.Server) {
		defer wg.Done()
		if err := srv.Shutdown(ctx); err != nil {
			s.logger.Error("Failed to shutdown "+name, zap.Error(err))
			mu.Lock()
			errs = append(errs, fmt.Errorf("%s shutdown: %w", name, err))
			mu.Unlock()
		}
	}

	wg.Add(1)
	go shutdownOne("main server", s.server)
	if s.metricsServer != nil {
		wg.Add(1)
		go shutdownOne("metrics server", s.metricsServer)
	}
	wg.Wait()

	s.rateLimiter.Stop()
	if err := s.tracer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("tracer shutdown: %w", err))
	}
	_ = s.logger.Sync()

	return errors.Join(errs...)
}

func (s *Server) trackConnection(_ net.Conn, state http.ConnState) {
	switch state {
	case http.StateNew:
		s.metrics.ActiveConnections.Inc()
	case http.StateHijacked, http.StateClosed:
		s.metrics.ActiveConnections.Dec()
	}
}

func viewNames(r views.Renderer) []string {
	if n, ok := r.(interface{ Names() []string }); ok {
		return n.Names()
	}
	return nil
}

package server

import (
	"bytes"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/vetled/store/internal/constants"
	"github.com/vetled/store/internal/oauth"
	"github.com/vetled/store/internal/observability"
	"github.com/vetled/store/internal/server/middleware"
	"github.com/vetled/store/internal/views"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// instrument wraps a route handler with a span and request metrics.
func (s *Server) instrument(endpoint, spanName string, h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx, span := s.tracer.StartSpan(r.Context(), spanName,
			attribute.String("http.method", r.Method),
			attribute.String("http.route", endpoint),
		)
		defer span.End()

		rw := middleware.NewResponseWriter(w)
		h(rw, r.WithContext(ctx))

		span.SetAttributes(attribute.Int("http.status_code", rw.StatusCode()))
		if rw.StatusCode() >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(rw.StatusCode()))
		}

		requestSize := r.ContentLength
		if requestSize < 0 {
			requestSize = 0
		}
		s.metrics.RecordRequest(r.Method, endpoint, rw.StatusCode(), time.Since(start), requestSize, rw.Size())
	})
}

// homeHandler serves the landing page with a link into the OAuth flow.
func (s *Server) homeHandler(w http.ResponseWriter, r *http.Request) {
	data := views.IndexData{AuthorizeURL: s.authorizer.AuthorizeURL(uuid.NewString())}
	s.render(w, r, constants.ViewIndex, data)
}

// render executes the view into a buffer first so a template failure still
// produces a clean error response.
func (s *Server) render(w http.ResponseWriter, r *http.Request, view string, data any) {
	_, span := s.tracer.StartSpan(r.Context(), "render_view", attribute.String("view", view))
	defer span.End()

	var buf bytes.Buffer
	err := s.renderer.Render(&buf, view, data)
	s.metrics.RecordRender(view, err)
	if err != nil {
		span.RecordError(err)
		s.writeError(w, r, err)
		return
	}

	w.Header().Set(constants.HeaderContentType, constants.ContentTypeHTML)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// callbackHandler completes the authorization code flow and returns the
// account list exactly as the banking API sent it.
func (s *Server) callbackHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	for _, name := range []string{constants.QueryParamCode, constants.QueryParamState} {
		if query.Get(name) == "" {
			s.writeMissingParameter(w, r, name)
			return
		}
	}

	callback := oauth.CallbackResponse{
		Code:  query.Get(constants.QueryParamCode),
		State: query.Get(constants.QueryParamState),
	}
	s.logger.Debug("Received OAuth callback", zap.Stringer("callback", callback))

	ctx, span := s.tracer.StartSpan(r.Context(), "oauth.token_exchange")
	start := time.Now()
	token, err := s.exchanger.ExchangeCodeForToken(ctx, callback.Code, callback.State)
	s.metrics.RecordUpstream("token_exchange", time.Since(start), err)
	if err != nil {
		span.RecordError(err)
		span.End()
		s.writeError(w, r, err)
		return
	}
	span.End()

	ctx, span = s.tracer.StartSpan(r.Context(), "banking.get_accounts")
	defer span.End()
	start = time.Now()
	accounts, err := s.accounts.GetAccounts(ctx, token.AccessToken)
	s.metrics.RecordUpstream("accounts", time.Since(start), err)
	if err != nil {
		span.RecordError(err)
		s.writeError(w, r, err)
		return
	}

	w.Header().Set(constants.HeaderContentType, constants.ContentTypeJSON)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(accounts)
}

func (s *Server) healthStatus() observability.HealthStatus {
	health := observability.HealthStatus{
		Timestamp: time.Now(),
		Version:   constants.ServiceVersion,
		Uptime:    time.Since(s.startTime).String(),
		Checks: map[string]bool{
			"views":  s.viewsReady(),
			"apidoc": s.apiDoc != nil,
		},
	}
	health.Status = "healthy"
	if !health.Healthy() {
		health.Status = "unhealthy"
	}
	return health
}

// viewsReady reports whether the landing page can be rendered.
func (s *Server) viewsReady() bool {
	if s.renderer == nil {
		return false
	}
	names := viewNames(s.renderer)
	if names == nil {
		return true
	}
	for _, n := range names {
		if n == constants.ViewIndex {
			return true
		}
	}
	return false
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	health := s.healthStatus()
	writeJSON(w, http.StatusOK, health)

	s.logger.Debug("Health check completed",
		zap.String("path", r.URL.Path),
		zap.String("remote_addr", r.RemoteAddr),
	)
}

func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	health := s.healthStatus()
	ready := health.Healthy()
	if ready {
		health.Status = "ready"
		writeJSON(w, http.StatusOK, health)
	} else {
		health.Status = "not ready"
		writeJSON(w, http.StatusServiceUnavailable, health)
	}

	s.logger.Debug("Readiness check completed",
		zap.String("path", r.URL.Path),
		zap.Bool("ready", ready),
	)
}

package server

import (
	"net/http"

	"github.com/vetled/store/internal/server/middleware"
)

// applyMiddleware wraps the router. Wrappers are applied innermost first,
// so the request id is the outermost layer.
func (s *Server) applyMiddleware(handler http.Handler) http.Handler {
	handler = s.rateLimiter.Middleware(handler)
	handler = middleware.RequestSizeLimitMiddleware(s.config.Server.MaxRequestSize)(handler)

	if s.config.Security.CORS.Enabled {
		handler = middleware.NewCORSMiddleware(s.config.Security.CORS).Handler(handler)
	}

	handler = middleware.SecurityHeadersMiddleware(s.config.Security.Headers)(handler)
	handler = middleware.RecoveryMiddleware(s.logger.Logger)(handler)
	handler = middleware.LoggingMiddleware(s.logger.Logger)(handler)
	handler = middleware.RequestIDMiddleware(handler)

	return handler
}

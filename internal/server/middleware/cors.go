package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/vetled/store/internal/config"
	"github.com/vetled/store/internal/constants"
)

const headerAccessControlRequestMethod = "Access-Control-Request-Method"

// CORSMiddleware answers CORS preflights and decorates allowed
// cross-origin responses.
type CORSMiddleware struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	AllowCredentials bool
	MaxAge           int
}

// NewCORSMiddleware creates a new CORS middleware
func NewCORSMiddleware(cfg config.CORSConfig) *CORSMiddleware {
	return &CORSMiddleware{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   cfg.AllowedMethods,
		AllowedHeaders:   cfg.AllowedHeaders,
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           cfg.MaxAge,
	}
}

func (c *CORSMiddleware) originAllowed(origin string) bool {
	if origin == "" {
		return false
	}
	for _, allowed := range c.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// Handler returns the CORS middleware handler
func (c *CORSMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get(constants.HeaderOrigin)
		w.Header().Add("Vary", constants.HeaderOrigin)

		allowed := c.originAllowed(origin)
		if allowed {
			w.Header().Set(constants.HeaderAccessControlAllowOrigin, origin)
			if c.AllowCredentials {
				w.Header().Set(constants.HeaderAccessControlAllowCredentials, "true")
			}
		}

		preflight := r.Method == constants.MethodOPTIONS && r.Header.Get(headerAccessControlRequestMethod) != ""
		if !preflight {
			next.ServeHTTP(w, r)
			return
		}

		if allowed {
			if len(c.AllowedMethods) > 0 {
				w.Header().Set(constants.HeaderAccessControlAllowMethods, strings.Join(c.AllowedMethods, ", "))
			}
			if len(c.AllowedHeaders) > 0 {
				w.Header().Set(constants.HeaderAccessControlAllowHeaders, strings.Join(c.AllowedHeaders, ", "))
			}
			if c.MaxAge > 0 {
				w.Header().Set(constants.HeaderAccessControlMaxAge, strconv.Itoa(c.MaxAge))
			}
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

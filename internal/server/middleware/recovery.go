package middleware

import (
	"encoding/json"
	"net/http"
	"runtime/debug"

	"github.com/vetled/store/internal/constants"
	"go.uber.org/zap"
)

// RecoveryMiddleware turns a handler panic into the generic 500 error body.
func RecoveryMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrapped := NewResponseWriter(w)

			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				logger.Error("Recovered from panic",
					zap.String("request_id", RequestIDFromContext(r.Context())),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Any("panic", rec),
					zap.ByteString("stack", debug.Stack()),
				)

				if wrapped.Written() {
					return
				}
				wrapped.Header().Set(constants.HeaderContentType, constants.ContentTypeJSON)
				wrapped.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(wrapped).Encode(map[string]string{
					"error":   constants.ErrorCodeInternal,
					"message": "An unexpected error occurred",
				})
			}()

			next.ServeHTTP(wrapped, r)
		})
	}
}

package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vetled/store/internal/banking"
	"github.com/vetled/store/internal/constants"
	"github.com/vetled/store/internal/oauth"
	"github.com/vetled/store/internal/server/middleware"
	"go.uber.org/zap"
)

// ErrorResponse is the JSON body of every error the server answers with.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// classifyError maps a failure onto its HTTP status and body. Only the
// authentication and banking failures expose their cause.
func classifyError(err error) (int, ErrorResponse) {
	var authErr *oauth.Error
	if errors.As(err, &authErr) {
		return http.StatusUnauthorized, ErrorResponse{
			Error:   constants.ErrorCodeAuthenticationFailed,
			Message: "Failed to authenticate with Sparebank",
			Details: authErr.Error(),
		}
	}

	var bankErr *banking.Error
	if errors.As(err, &bankErr) {
		return http.StatusBadGateway, ErrorResponse{
			Error:   constants.ErrorCodeBankingAPIFailed,
			Message: "Failed to fetch banking data",
			Details: bankErr.Error(),
		}
	}

	return http.StatusInternalServerError, ErrorResponse{
		Error:   constants.ErrorCodeInternal,
		Message: "An unexpected error occurred",
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := classifyError(err)

	s.logger.Error("Request failed",
		zap.String("request_id", middleware.RequestIDFromContext(r.Context())),
		zap.String("path", r.URL.Path),
		zap.String("error_code", body.Error),
		zap.Int("status_code", status),
		zap.Error(err),
	)

	writeJSON(w, status, body)
}

func (s *Server) writeMissingParameter(w http.ResponseWriter, r *http.Request, name string) {
	s.logger.Warn("Missing required parameter",
		zap.String("request_id", middleware.RequestIDFromContext(r.Context())),
		zap.String("parameter", name),
	)
	writeJSON(w, http.StatusBadRequest, ErrorResponse{
		Error:   constants.ErrorCodeInvalidRequest,
		Message: "Missing required parameter",
		Details: name,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set(constants.HeaderContentType, constants.ContentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

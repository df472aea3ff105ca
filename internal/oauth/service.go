package oauth

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/vetled/store/internal/config"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// Service performs the authorization code flow against Sparebank 1.
type Service struct {
	cfg    config.OAuthConfig
	conf   *oauth2.Config
	client *http.Client
	logger *zap.Logger
}

// NewService creates a Service. A nil client gets one with cfg.Timeout.
func NewService(cfg config.OAuthConfig, client *http.Client, logger *zap.Logger) *Service {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		cfg: cfg,
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthorizeURI,
				TokenURL:  cfg.TokenURI,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		client: client,
		logger: logger,
	}
}

// Configured reports whether client credentials are present.
func (s *Service) Configured() bool {
	return s.cfg.Configured()
}

// AuthorizeURL returns the URL that starts the authorization flow, or an
// empty string when the client is not configured.
func (s *Service) AuthorizeURL(state string) string {
	if !s.Configured() {
		return ""
	}

	var opts []oauth2.AuthCodeOption
	if s.cfg.FinInst != "" {
		opts = append(opts, oauth2.SetAuthURLParam("finInst", s.cfg.FinInst))
	}
	return s.conf.AuthCodeURL(state, opts...)
}

// ExchangeCodeForToken trades an authorization code for an access token.
// Every failure is returned as *Error.
func (s *Service) ExchangeCodeForToken(ctx context.Context, code, state string) (*TokenResponse, error) {
	if !s.Configured() {
		s.logger.Error("Failed to exchange code for token", zap.Error(ErrNotConfigured))
		return nil, &Error{Err: ErrNotConfigured}
	}

	s.logger.Info("Exchanging authorization code for access token")

	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.client)
	tok, err := s.conf.Exchange(ctx, code, oauth2.SetAuthURLParam("state", state))
	if err != nil {
		s.logger.Error("Failed to exchange code for token", zap.Error(err))
		return nil, &Error{Err: err}
	}

	resp := &TokenResponse{
		AccessToken:           tok.AccessToken,
		TokenType:             tok.TokenType,
		ExpiresIn:             extraInt(tok, "expires_in"),
		RefreshToken:          tok.RefreshToken,
		RefreshTokenExpiresIn: extraInt(tok, "refresh_token_expires_in"),
	}

	s.logger.Info("Successfully obtained access token",
		zap.String("token_type", resp.TokenType),
		zap.Int64("expires_in", resp.ExpiresIn),
	)
	return resp, nil
}

// extraInt reads a numeric field from the raw token response, which is a
// JSON number or a form value depending on the server's content type.
func extraInt(tok *oauth2.Token, key string) int64 {
	switch v := tok.Extra(key).(type) {
	case float64:
		return int64(v)
	case json.Number:
		n, _ := v.Int64()
		return n
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	}
	return 0
}

package oauth

import (
	"errors"
	"fmt"
)

// ErrNotConfigured is the cause of exchanges attempted without client
// credentials.
var ErrNotConfigured = errors.New("oauth client is not configured")

// TokenResponse is the token endpoint answer.
type TokenResponse struct {
	AccessToken           string `json:"access_token"`
	TokenType             string `json:"token_type"`
	ExpiresIn             int64  `json:"expires_in"`
	RefreshToken          string `json:"refresh_token"`
	RefreshTokenExpiresIn int64  `json:"refresh_token_expires_in"`
}

// CallbackResponse holds the parameters Sparebank sends to the redirect URI.
type CallbackResponse struct {
	Code  string `json:"code"`
	State string `json:"state"`
}

func (c CallbackResponse) String() string {
	return fmt.Sprintf("CallbackResponse{code='%s', state='%s'}", c.Code, c.State)
}

// Error reports a failed code-for-token exchange.
type Error struct {
	Err error
}

func (e *Error) Error() string {
	return "Token exchange failed: " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

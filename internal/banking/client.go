package banking

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/vetled/store/internal/config"
	"github.com/vetled/store/internal/constants"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// maxErrorBody caps how much of an upstream error body ends up in messages.
const maxErrorBody = 512

// Error reports a failed banking API call. StatusCode is zero when no
// response was received.
type Error struct {
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	return "Failed to fetch accounts: " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Client calls the Sparebank 1 personal banking API.
type Client struct {
	cfg    config.APIConfig
	base   *http.Client
	logger *zap.Logger
}

// NewClient creates a Client. A nil base client gets one with cfg.Timeout.
func NewClient(cfg config.APIConfig, base *http.Client, logger *zap.Logger) *Client {
	if base == nil {
		base = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{cfg: cfg, base: base, logger: logger}
}

// GetAccounts returns the account list JSON exactly as Sparebank sent it.
func (c *Client) GetAccounts(ctx context.Context, accessToken string) ([]byte, error) {
	c.logger.Info("Fetching accounts from Sparebank API")

	body, err := c.getAccounts(ctx, accessToken)
	if err != nil {
		c.logger.Error("Failed to fetch accounts from Sparebank API", zap.Error(err))
		return nil, err
	}

	c.logger.Info("Successfully fetched accounts", zap.Int("bytes", len(body)))
	return body, nil
}

func (c *Client) getAccounts(ctx context.Context, accessToken string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.AccountsURL, nil)
	if err != nil {
		return nil, &Error{Err: err}
	}
	req.Header.Set(constants.HeaderAccept, c.cfg.Accept)

	// The oauth2 transport adds the bearer Authorization header.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.base)
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}))
	client.Timeout = c.base.Timeout

	resp, err := client.Do(req)
	if err != nil {
		return nil, &Error{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &Error{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%d %s: %s", resp.StatusCode, http.StatusText(resp.StatusCode), strings.TrimSpace(string(snippet))),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}
	return body, nil
}

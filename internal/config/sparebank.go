package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/vetled/store/internal/constants"
)

// SparebankConfig groups the settings for talking to Sparebank 1.
type SparebankConfig struct {
	OAuth OAuthConfig `json:"oauth" yaml:"oauth"`
	API   APIConfig   `json:"api" yaml:"api"`
}

// OAuthConfig holds the OAuth client registration used for the
// authorization code flow.
type OAuthConfig struct {
	ClientID     string        `json:"client_id" yaml:"client_id"`
	ClientSecret string        `json:"client_secret" yaml:"client_secret"`
	RedirectURI  string        `json:"redirect_uri" yaml:"redirect_uri"`
	TokenURI     string        `json:"token_uri" yaml:"token_uri"`
	AuthorizeURI string        `json:"authorize_uri" yaml:"authorize_uri"`
	FinInst      string        `json:"fin_inst" yaml:"fin_inst"`
	Timeout      time.Duration `json:"timeout" yaml:"timeout"`
}

// APIConfig holds the banking API endpoints.
type APIConfig struct {
	AccountsURL string        `json:"accounts_url" yaml:"accounts_url"`
	Accept      string        `json:"accept" yaml:"accept"`
	Timeout     time.Duration `json:"timeout" yaml:"timeout"`
}

// DefaultSparebankConfig returns the public Sparebank 1 endpoints with no
// client credentials.
func DefaultSparebankConfig() SparebankConfig {
	return SparebankConfig{
		OAuth: OAuthConfig{
			RedirectURI:  constants.DefaultRedirectURI,
			TokenURI:     constants.SparebankTokenURI,
			AuthorizeURI: constants.SparebankAuthorizeURI,
			Timeout:      constants.SparebankTimeout,
		},
		API: APIConfig{
			AccountsURL: constants.SparebankAccountsURL,
			Accept:      constants.SparebankAcceptHeader,
			Timeout:     constants.SparebankTimeout,
		},
	}
}

// Configured reports whether client credentials are present.
func (o OAuthConfig) Configured() bool {
	return o.ClientID != "" && o.ClientSecret != ""
}

// Validate validates the Sparebank configuration. Missing credentials are
// not an error: the server still serves its pages and reports the callback
// as unauthenticated.
func (s *SparebankConfig) Validate() error {
	var errs []error

	if err := validateURL(s.OAuth.TokenURI, "oauth.token_uri"); err != nil {
		errs = append(errs, err)
	}
	if err := validateURL(s.OAuth.AuthorizeURI, "oauth.authorize_uri"); err != nil {
		errs = append(errs, err)
	}
	if err := validateURL(s.OAuth.RedirectURI, "oauth.redirect_uri"); err != nil {
		errs = append(errs, err)
	}
	if (s.OAuth.ClientID == "") != (s.OAuth.ClientSecret == "") {
		errs = append(errs, errors.New("oauth.client_id and oauth.client_secret must be set together"))
	}
	if s.OAuth.Timeout <= 0 {
		errs = append(errs, errors.New("oauth.timeout must be positive"))
	}

	if err := validateURL(s.API.AccountsURL, "api.accounts_url"); err != nil {
		errs = append(errs, err)
	}
	if s.API.Accept == "" {
		errs = append(errs, errors.New("api.accept cannot be empty"))
	}
	if s.API.Timeout <= 0 {
		errs = append(errs, errors.New("api.timeout must be positive"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func validateURL(raw, fieldName string) error {
	if raw == "" {
		return fmt.Errorf("%s cannot be empty", fieldName)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", fieldName, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must use http or https, got %q", fieldName, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%s must include a host", fieldName)
	}
	return nil
}

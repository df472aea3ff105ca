package config

import (
	"crypto/tls"
	"errors"
	"fmt"
	"os"
)

// TLSConfig contains TLS-specific configuration
type TLSConfig struct {
	Enabled    bool   `json:"enabled" yaml:"enabled"`
	CertFile   string `json:"cert_file" yaml:"cert_file"`
	KeyFile    string `json:"key_file" yaml:"key_file"`
	MinVersion string `json:"min_version" yaml:"min_version"`
}

var tlsVersions = map[string]uint16{
	"1.2": tls.VersionTLS12,
	"1.3": tls.VersionTLS13,
}

// DefaultTLSConfig returns default TLS configuration
func DefaultTLSConfig() TLSConfig {
	return TLSConfig{
		Enabled:    false,
		MinVersion: "1.2",
	}
}

// TLSMinVersion maps MinVersion onto a crypto/tls constant, defaulting to TLS 1.2.
func (c TLSConfig) TLSMinVersion() uint16 {
	if v, ok := tlsVersions[c.MinVersion]; ok {
		return v
	}
	return tls.VersionTLS12
}

// Validate validates the TLS configuration
func (c TLSConfig) Validate() error {
	if !c.Enabled {
		return nil
	}

	var errs []error
	if c.CertFile == "" {
		errs = append(errs, errors.New("cert_file is required when TLS is enabled"))
	} else if _, err := os.Stat(c.CertFile); os.IsNotExist(err) {
		errs = append(errs, fmt.Errorf("cert file not found: %s", c.CertFile))
	}
	if c.KeyFile == "" {
		errs = append(errs, errors.New("key_file is required when TLS is enabled"))
	} else if _, err := os.Stat(c.KeyFile); os.IsNotExist(err) {
		errs = append(errs, fmt.Errorf("key file not found: %s", c.KeyFile))
	}
	if c.MinVersion != "" {
		if _, ok := tlsVersions[c.MinVersion]; !ok {
			errs = append(errs, fmt.Errorf("min_version %q must be one of: 1.2, 1.3", c.MinVersion))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

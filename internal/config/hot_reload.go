package config

import (
	"fmt"
	"time"
)

// HotReloadConfig controls reloading of view templates from views.templates_dir.
// It has no effect when templates are served from the binary.
type HotReloadConfig struct {
	Enabled  bool          `json:"enabled" yaml:"enabled"`
	Debounce time.Duration `json:"debounce" yaml:"debounce"`
}

// DefaultHotReloadConfig returns default hot reload configuration
func DefaultHotReloadConfig() HotReloadConfig {
	return HotReloadConfig{
		Enabled:  true,
		Debounce: 300 * time.Millisecond,
	}
}

// Validate validates hot reload configuration
func (h HotReloadConfig) Validate() error {
	if h.Debounce < 0 {
		return fmt.Errorf("debounce must be non-negative")
	}
	return nil
}

// Active reports whether template hot reload should run for the given views config.
func (h HotReloadConfig) Active(views ViewsConfig) bool {
	return h.Enabled && views.TemplatesDir != ""
}

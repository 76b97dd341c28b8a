package app

import (
	"errors"
	"fmt"
	"time"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	ModulesPath string // node type catalogs, searched recursively for .hcl files

	LogFormat       string
	LogLevel        string
	HealthcheckPort int
	// WorkerCount sizes the evaluation pool. 0 selects the number of CPUs.
	WorkerCount int

	EditorURL string
	DBPath    string
	// Debounce is how long Serve waits for edits to settle before a pass.
	Debounce time.Duration
}

// NewConfig validates cfg and fills in defaults.
func NewConfig(cfg Config) (*Config, error) {
	var errs []error
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("invalid log-format %q: must be 'text' or 'json'", cfg.LogFormat))
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if _, err := parseLevel(cfg.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if cfg.WorkerCount < 0 {
		errs = append(errs, fmt.Errorf("invalid workers %d: must not be negative", cfg.WorkerCount))
	}
	if cfg.HealthcheckPort < 0 || cfg.HealthcheckPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid healthcheck-port %d", cfg.HealthcheckPort))
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 100 * time.Millisecond
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &cfg, nil
}

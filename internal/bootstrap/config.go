package bootstrap

import (
	"fmt"

	"hyperliquidity-mm/internal/config"
)

// Config is an alias for the project's main configuration struct
type Config = config.Config

// LoadConfig delegates to the project's config loader and runs pre-flight
// checks beyond schema validation.
func LoadConfig(path string) (*Config, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}

	if err := checkPreFlight(cfg); err != nil {
		return nil, fmt.Errorf("pre-flight checks failed: %w", err)
	}

	return cfg, nil
}

// checkPreFlight performs environment checks beyond schema validation: the
// wallet secrets must be present before the engine ever reaches for the
// exchange.
func checkPreFlight(cfg *Config) error {
	if _, err := config.LoadSecrets(); err != nil {
		return err
	}
	if cfg.Transport.RestBaseURL == "" {
		return fmt.Errorf("transport.rest_base_url is required")
	}
	if cfg.Transport.WsURL == "" {
		return fmt.Errorf("transport.ws_url is required")
	}
	return nil
}

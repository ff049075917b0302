package config

import "fmt"

// APIConfig configures the HTTP surface.
type APIConfig struct {
	Address string `json:"address"`
	// Token, when set, is required as "Bearer <token>" on every route but
	// /health.
	Token                  string `json:"token"`
	HeartbeatSeconds       int    `json:"heartbeat_seconds"`
	RequestTimeoutSeconds  int    `json:"request_timeout_seconds"`
	ShutdownTimeoutSeconds int    `json:"shutdown_timeout_seconds"`
}

func (c *APIConfig) SetDefaults() {
	if c.Address == "" {
		c.Address = ":8080"
	}
	if c.HeartbeatSeconds == 0 {
		c.HeartbeatSeconds = 15
	}
	if c.RequestTimeoutSeconds == 0 {
		c.RequestTimeoutSeconds = 10
	}
	if c.ShutdownTimeoutSeconds == 0 {
		c.ShutdownTimeoutSeconds = 5
	}
}

func (c APIConfig) Validate() error {
	if c.HeartbeatSeconds < 0 || c.RequestTimeoutSeconds < 0 || c.ShutdownTimeoutSeconds < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	return nil
}

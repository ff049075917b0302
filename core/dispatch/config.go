package dispatch

import (
	"fmt"
	"time"
)

// Config defines engine settings.
type Config struct {
	// UndoDepth bounds the undo log of each board. Zero means one.
	UndoDepth          int `json:"undo_depth"`
	LoadTimeoutSeconds int `json:"load_timeout_seconds"`
	SaveTimeoutSeconds int `json:"save_timeout_seconds"`
	// SaveMaxRetries defaults to 3. A negative value disables retries.
	SaveMaxRetries   int `json:"save_max_retries"`
	SaveBackoffMS    int `json:"save_backoff_ms"`
	SaveMaxBackoffMS int `json:"save_max_backoff_ms"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.UndoDepth <= 0 {
		c.UndoDepth = 1
	}
	if c.LoadTimeoutSeconds <= 0 {
		c.LoadTimeoutSeconds = 10
	}
	if c.SaveTimeoutSeconds <= 0 {
		c.SaveTimeoutSeconds = 5
	}
	if c.SaveMaxRetries < 0 {
		c.SaveMaxRetries = 0
	} else if c.SaveMaxRetries == 0 {
		c.SaveMaxRetries = 3
	}
	if c.SaveBackoffMS <= 0 {
		c.SaveBackoffMS = 100
	}
	if c.SaveMaxBackoffMS <= 0 {
		c.SaveMaxBackoffMS = 2000
	}
}

// Validate checks the settings after defaults were applied.
func (c Config) Validate() error {
	if c.UndoDepth < 1 {
		return fmt.Errorf("engine.undo_depth must be at least 1")
	}
	if c.SaveMaxBackoffMS < c.SaveBackoffMS {
		return fmt.Errorf("engine.save_max_backoff_ms must not be below save_backoff_ms")
	}
	return nil
}

func (c Config) loadTimeout() time.Duration {
	return time.Duration(c.LoadTimeoutSeconds) * time.Second
}

func (c Config) retry() retryPolicy {
	return retryPolicy{
		maxRetries: c.SaveMaxRetries,
		baseDelay:  time.Duration(c.SaveBackoffMS) * time.Millisecond,
		maxDelay:   time.Duration(c.SaveMaxBackoffMS) * time.Millisecond,
		timeout:    time.Duration(c.SaveTimeoutSeconds) * time.Second,
	}
}

package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *DashboardConfig) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("api.base_url is required")
	}
	if c.API.WSURL == "" {
		return errors.New("api.ws_url is required")
	}
	if !strings.HasPrefix(c.API.WSURL, "ws://") && !strings.HasPrefix(c.API.WSURL, "wss://") {
		return fmt.Errorf("api.ws_url must be a ws:// or wss:// URL, got %q", c.API.WSURL)
	}

	if c.Connection.RetryDelay <= 0 {
		return errors.New("connection.retry_delay must be > 0")
	}
	if c.Connection.MaxAttempts < 1 {
		return errors.New("connection.max_attempts must be >= 1")
	}
	if c.Connection.BufferSize < 1 {
		return errors.New("connection.buffer_size must be >= 1")
	}

	if c.Reconcile.Interval <= 0 {
		return errors.New("reconcile.interval must be > 0")
	}
	if c.Reconcile.Timeout <= 0 {
		return errors.New("reconcile.timeout must be > 0")
	}

	if c.ReadModel.ActivityCap < 1 {
		return errors.New("read_model.activity_cap must be >= 1")
	}
	if c.ReadModel.FlaggedCap < 1 {
		return errors.New("read_model.flagged_cap must be >= 1")
	}
	if c.ReadModel.DedupWindow < 1 {
		return errors.New("read_model.dedup_window must be >= 1")
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}

	return nil
}

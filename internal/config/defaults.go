package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultAPITimeout   = 15 * time.Second
	DefaultMaxRetries   = 3
	DefaultRetryDelay   = 3 * time.Second
	DefaultMaxAttempts  = 5
	DefaultPingTimeout  = 60 * time.Second
	DefaultWriteTimeout = 5 * time.Second
	DefaultBufferSize   = 256
	DefaultInterval     = 30 * time.Second
	DefaultFetchTimeout = 10 * time.Second
	DefaultActivityCap  = 20
	DefaultFlaggedCap   = 50
	DefaultDedupWindow  = 512
	DefaultMetricsPort  = 9090
	DefaultMetricsPath  = "/metrics"
)

func (c *DashboardConfig) applyDefaults() {
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.MaxRetries == 0 {
		c.API.MaxRetries = DefaultMaxRetries
	}

	if c.Connection.RetryDelay == 0 {
		c.Connection.RetryDelay = DefaultRetryDelay
	}
	if c.Connection.MaxAttempts == 0 {
		c.Connection.MaxAttempts = DefaultMaxAttempts
	}
	if c.Connection.PingTimeout == 0 {
		c.Connection.PingTimeout = DefaultPingTimeout
	}
	if c.Connection.WriteTimeout == 0 {
		c.Connection.WriteTimeout = DefaultWriteTimeout
	}
	if c.Connection.BufferSize == 0 {
		c.Connection.BufferSize = DefaultBufferSize
	}

	if c.Reconcile.Interval == 0 {
		c.Reconcile.Interval = DefaultInterval
	}
	if c.Reconcile.Timeout == 0 {
		c.Reconcile.Timeout = DefaultFetchTimeout
	}

	if c.ReadModel.ActivityCap == 0 {
		c.ReadModel.ActivityCap = DefaultActivityCap
	}
	if c.ReadModel.FlaggedCap == 0 {
		c.ReadModel.FlaggedCap = DefaultFlaggedCap
	}
	if c.ReadModel.DedupWindow == 0 {
		c.ReadModel.DedupWindow = DefaultDedupWindow
	}

	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}

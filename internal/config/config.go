package config

import "time"

// DashboardConfig is the root configuration for a dashboard sync session.
type DashboardConfig struct {
	API        APIConfig        `yaml:"api"`
	Connection ConnectionConfig `yaml:"connection"`
	Reconcile  ReconcileConfig  `yaml:"reconcile"`
	ReadModel  ReadModelConfig  `yaml:"read_model"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// APIConfig holds REST and push-channel endpoint settings.
type APIConfig struct {
	BaseURL    string        `yaml:"base_url"`
	WSURL      string        `yaml:"ws_url"`
	TokenPath  string        `yaml:"token_path"` // path to the bearer token file
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// ConnectionConfig holds push-channel connection manager settings.
type ConnectionConfig struct {
	RetryDelay   time.Duration `yaml:"retry_delay"`  // fixed wait between reconnect attempts
	MaxAttempts  int           `yaml:"max_attempts"` // reconnect attempts before giving up
	PingTimeout  time.Duration `yaml:"ping_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	BufferSize   int           `yaml:"buffer_size"`
}

// ReconcileConfig holds snapshot reconciliation settings.
type ReconcileConfig struct {
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"` // per snapshot fetch
}

// ReadModelConfig holds read-model bounds.
type ReadModelConfig struct {
	ActivityCap int `yaml:"activity_cap"` // max activity log entries
	FlaggedCap  int `yaml:"flagged_cap"`  // max flagged reports retained
	DedupWindow int `yaml:"dedup_window"` // delivery ids remembered for redelivery detection
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}

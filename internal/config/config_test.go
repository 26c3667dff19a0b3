package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dashboard.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	yaml := `
api:
  base_url: https://forum.example.org/api
  ws_url: wss://forum.example.org/push
  token_path: /var/run/dashboard/token
connection:
  retry_delay: 2s
  max_attempts: 4
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.API.BaseURL != "https://forum.example.org/api" {
		t.Errorf("API.BaseURL = %q, want %q", cfg.API.BaseURL, "https://forum.example.org/api")
	}
	if cfg.API.WSURL != "wss://forum.example.org/push" {
		t.Errorf("API.WSURL = %q, want %q", cfg.API.WSURL, "wss://forum.example.org/push")
	}
	if cfg.Connection.RetryDelay != 2*time.Second {
		t.Errorf("Connection.RetryDelay = %v, want 2s", cfg.Connection.RetryDelay)
	}
	if cfg.Connection.MaxAttempts != 4 {
		t.Errorf("Connection.MaxAttempts = %d, want 4", cfg.Connection.MaxAttempts)
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_TOKEN_PATH", "/secrets/token")

	yaml := `
api:
  base_url: https://forum.example.org/api
  ws_url: wss://forum.example.org/push
  token_path: ${TEST_TOKEN_PATH}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.API.TokenPath != "/secrets/token" {
		t.Errorf("API.TokenPath = %q, want /secrets/token", cfg.API.TokenPath)
	}
}

func TestLoadWithDefaults(t *testing.T) {
	yaml := `
api:
  base_url: https://forum.example.org/api
  ws_url: wss://forum.example.org/push
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	if cfg.Connection.RetryDelay != DefaultRetryDelay {
		t.Errorf("RetryDelay = %v, want %v", cfg.Connection.RetryDelay, DefaultRetryDelay)
	}
	if cfg.Connection.MaxAttempts != DefaultMaxAttempts {
		t.Errorf("MaxAttempts = %d, want %d", cfg.Connection.MaxAttempts, DefaultMaxAttempts)
	}
	if cfg.Reconcile.Interval != DefaultInterval {
		t.Errorf("Reconcile.Interval = %v, want %v", cfg.Reconcile.Interval, DefaultInterval)
	}
	if cfg.ReadModel.ActivityCap != DefaultActivityCap {
		t.Errorf("ActivityCap = %d, want %d", cfg.ReadModel.ActivityCap, DefaultActivityCap)
	}
	if cfg.ReadModel.DedupWindow != DefaultDedupWindow {
		t.Errorf("DedupWindow = %d, want %d", cfg.ReadModel.DedupWindow, DefaultDedupWindow)
	}
	if cfg.Metrics.Port != DefaultMetricsPort {
		t.Errorf("Metrics.Port = %d, want %d", cfg.Metrics.Port, DefaultMetricsPort)
	}
	if cfg.Metrics.Path != DefaultMetricsPath {
		t.Errorf("Metrics.Path = %q, want %q", cfg.Metrics.Path, DefaultMetricsPath)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *DashboardConfig {
		cfg := &DashboardConfig{}
		cfg.API.BaseURL = "https://forum.example.org/api"
		cfg.API.WSURL = "wss://forum.example.org/push"
		cfg.applyDefaults()
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*DashboardConfig)
		wantErr bool
	}{
		{"valid", func(c *DashboardConfig) {}, false},
		{"missing base_url", func(c *DashboardConfig) { c.API.BaseURL = "" }, true},
		{"missing ws_url", func(c *DashboardConfig) { c.API.WSURL = "" }, true},
		{"http ws_url", func(c *DashboardConfig) { c.API.WSURL = "https://x" }, true},
		{"zero retry delay", func(c *DashboardConfig) { c.Connection.RetryDelay = 0 }, true},
		{"zero max attempts", func(c *DashboardConfig) { c.Connection.MaxAttempts = 0 }, true},
		{"zero interval", func(c *DashboardConfig) { c.Reconcile.Interval = 0 }, true},
		{"zero activity cap", func(c *DashboardConfig) { c.ReadModel.ActivityCap = 0 }, true},
		{"bad metrics port", func(c *DashboardConfig) { c.Metrics.Port = 70000 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() err = %v, wantErr = %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadAndValidate_MissingFile(t *testing.T) {
	if _, err := LoadAndValidate(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, 2, cfg.Queue.MaxAttempts)
	assert.Equal(t, 24*time.Hour, cfg.Queue.MaxActionAge)
	assert.Equal(t, 50, cfg.Orchestrator.WarningThreshold)
	assert.Equal(t, 100, cfg.Orchestrator.DangerThreshold)
	assert.Equal(t, BackendJSONFile, cfg.Storage.Backend)
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, NewDefaultConfig(), cfg)
}

func TestLoadEmptyPathYieldsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, NewDefaultConfig(), cfg)
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
queue:
  max_attempts: 5
storage:
  backend: sqlite
  path: /tmp/actions.db
executor:
  base_url: https://api.example.com
  timeout: 3s
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Queue.MaxAttempts)
	assert.Equal(t, BackendSQLite, cfg.Storage.Backend)
	assert.Equal(t, "https://api.example.com", cfg.Executor.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.Executor.Timeout)

	// Unset fields keep their defaults.
	assert.Equal(t, 24*time.Hour, cfg.Queue.MaxActionAge)
	assert.Equal(t, 100, cfg.Orchestrator.DangerThreshold)
}

func TestLoadDurations(t *testing.T) {
	path := writeConfig(t, `
orchestrator:
  tick_interval: 10s
  sync_cooldown: 500ms
  breaker_pause: 1m
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, cfg.Orchestrator.TickInterval)
	assert.Equal(t, 500*time.Millisecond, cfg.Orchestrator.SyncCooldown)
	assert.Equal(t, time.Minute, cfg.Orchestrator.BreakerPause)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := writeConfig(t, "queue: [not a map")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero max attempts", func(c *Config) { c.Queue.MaxAttempts = 0 }},
		{"negative action age", func(c *Config) { c.Queue.MaxActionAge = -time.Hour }},
		{"zero warning threshold", func(c *Config) { c.Orchestrator.WarningThreshold = 0 }},
		{"warning above danger", func(c *Config) { c.Orchestrator.WarningThreshold = 200 }},
		{"zero tick interval", func(c *Config) { c.Orchestrator.TickInterval = 0 }},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "redis" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestOptionConversions(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Queue.MaxAttempts = 7
	cfg.Orchestrator.DangerThreshold = 250

	assert.Equal(t, 7, cfg.QueueOptions().MaxAttempts)
	assert.Equal(t, 250, cfg.OrchestratorOptions().DangerThreshold)
	assert.Len(t, cfg.ProberOptions(), 3)
}

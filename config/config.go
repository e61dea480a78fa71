// Package config provides configuration loading for the offline queue
// service.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	offline "github.com/c0deZ3R0/go-offline-kit"
	"github.com/c0deZ3R0/go-offline-kit/logging"
)

// Storage backends supported by the service.
const (
	BackendJSONFile = "jsonfile"
	BackendSQLite   = "sqlite"
)

// Config is the full service configuration.
type Config struct {
	Queue        QueueConfig        `yaml:"queue"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Probe        ProbeConfig        `yaml:"probe"`
	Storage      StorageConfig      `yaml:"storage"`
	Executor     ExecutorConfig     `yaml:"executor"`
	Bridge       BridgeConfig       `yaml:"bridge"`
	Logging      logging.Config     `yaml:"logging"`
}

// QueueConfig configures retry and pruning policy.
type QueueConfig struct {
	MaxAttempts  int           `yaml:"max_attempts"`
	MaxActionAge time.Duration `yaml:"max_action_age"`
	OldActionAge time.Duration `yaml:"old_action_age"`
}

// OrchestratorConfig configures scheduling and the circuit breaker.
type OrchestratorConfig struct {
	TickInterval     time.Duration `yaml:"tick_interval"`
	SyncCooldown     time.Duration `yaml:"sync_cooldown"`
	WarningThreshold int           `yaml:"warning_threshold"`
	DangerThreshold  int           `yaml:"danger_threshold"`
	BreakerPause     time.Duration `yaml:"breaker_pause"`
}

// ProbeConfig configures the connectivity prober.
type ProbeConfig struct {
	PrimaryURL       string        `yaml:"primary_url"`
	SecondaryURL     string        `yaml:"secondary_url"`
	PrimaryTimeout   time.Duration `yaml:"primary_timeout"`
	SecondaryTimeout time.Duration `yaml:"secondary_timeout"`
	Interval         time.Duration `yaml:"interval"`
}

// StorageConfig selects and configures the durable action log backend.
type StorageConfig struct {
	// Backend is "jsonfile" or "sqlite".
	Backend string `yaml:"backend"`

	// Path is the JSON file path (jsonfile) or data source name (sqlite).
	Path string `yaml:"path"`
}

// ExecutorConfig configures the remote mutation executor.
type ExecutorConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// BridgeConfig configures the optional worker bridge.
type BridgeConfig struct {
	// WorkerURL is the websocket endpoint of the companion worker queue.
	// Empty disables the bridge.
	WorkerURL string `yaml:"worker_url"`
}

// NewDefaultConfig returns the configuration used when no file is present.
func NewDefaultConfig() *Config {
	queueOpts := offline.DefaultQueueOptions()
	orchOpts := offline.DefaultOrchestratorOptions()

	return &Config{
		Queue: QueueConfig{
			MaxAttempts:  queueOpts.MaxAttempts,
			MaxActionAge: queueOpts.MaxActionAge,
			OldActionAge: queueOpts.OldActionAge,
		},
		Orchestrator: OrchestratorConfig{
			TickInterval:     orchOpts.TickInterval,
			SyncCooldown:     orchOpts.SyncCooldown,
			WarningThreshold: orchOpts.WarningThreshold,
			DangerThreshold:  orchOpts.DangerThreshold,
			BreakerPause:     orchOpts.BreakerPause,
		},
		Probe: ProbeConfig{
			PrimaryURL:       "https://www.google.com/favicon.ico",
			SecondaryURL:     "https://httpbin.org/status/200",
			PrimaryTimeout:   5 * time.Second,
			SecondaryTimeout: 2 * time.Second,
			Interval:         30 * time.Second,
		},
		Storage: StorageConfig{
			Backend: BackendJSONFile,
			Path:    "offline-actions.json",
		},
		Executor: ExecutorConfig{
			Timeout: 10 * time.Second,
		},
		Logging: logging.DefaultConfig,
	}
}

// Load reads configuration from the given path, overlaying the defaults.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := NewDefaultConfig()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Queue.MaxAttempts < 1 {
		return fmt.Errorf("queue.max_attempts must be at least 1")
	}
	if c.Queue.MaxActionAge <= 0 {
		return fmt.Errorf("queue.max_action_age must be positive")
	}
	if c.Orchestrator.WarningThreshold <= 0 || c.Orchestrator.DangerThreshold <= 0 {
		return fmt.Errorf("orchestrator thresholds must be positive")
	}
	if c.Orchestrator.WarningThreshold >= c.Orchestrator.DangerThreshold {
		return fmt.Errorf("orchestrator.warning_threshold must be below danger_threshold")
	}
	if c.Orchestrator.TickInterval <= 0 {
		return fmt.Errorf("orchestrator.tick_interval must be positive")
	}
	switch c.Storage.Backend {
	case BackendJSONFile, BackendSQLite:
	default:
		return fmt.Errorf("storage.backend must be %q or %q", BackendJSONFile, BackendSQLite)
	}
	return nil
}

// QueueOptions converts the queue section to offline.QueueOptions.
func (c *Config) QueueOptions() offline.QueueOptions {
	return offline.QueueOptions{
		MaxAttempts:  c.Queue.MaxAttempts,
		MaxActionAge: c.Queue.MaxActionAge,
		OldActionAge: c.Queue.OldActionAge,
	}
}

// OrchestratorOptions converts the orchestrator section.
func (c *Config) OrchestratorOptions() offline.OrchestratorOptions {
	return offline.OrchestratorOptions{
		TickInterval:     c.Orchestrator.TickInterval,
		SyncCooldown:     c.Orchestrator.SyncCooldown,
		WarningThreshold: c.Orchestrator.WarningThreshold,
		DangerThreshold:  c.Orchestrator.DangerThreshold,
		BreakerPause:     c.Orchestrator.BreakerPause,
	}
}

// ProberOptions converts the probe section.
func (c *Config) ProberOptions() []offline.ProberOption {
	return []offline.ProberOption{
		offline.WithProbeEndpoints(c.Probe.PrimaryURL, c.Probe.SecondaryURL),
		offline.WithProbeTimeouts(c.Probe.PrimaryTimeout, c.Probe.SecondaryTimeout),
		offline.WithProbeInterval(c.Probe.Interval),
	}
}

// Package config loads runner and compaction settings from YAML files, for
// deployments that wire the orchestrator from configuration instead of code.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/agenttree/agenttree/runner"
)

// Config is the root configuration document.
type Config struct {
	App        AppConfig        `yaml:"app"`
	Runner     RunnerConfig     `yaml:"runner"`
	Compaction CompactionConfig `yaml:"compaction"`
	Logging    LoggingConfig    `yaml:"logging"`
	Tracing    TracingConfig    `yaml:"tracing"`
}

// AppConfig identifies the application owning the sessions.
type AppConfig struct {
	Name string `yaml:"name"`
}

// RunnerConfig mirrors runner.Options.
type RunnerConfig struct {
	// TransferMode is "continue" or "handoff".
	TransferMode string `yaml:"transfer_mode"`
	// SessionBusyPolicy is "queue" or "reject".
	SessionBusyPolicy string `yaml:"session_busy_policy"`
	EventBufferSize   int    `yaml:"event_buffer_size"`
	MaxModelCalls     int    `yaml:"max_model_calls"`
}

// CompactionConfig tunes event log compaction.
type CompactionConfig struct {
	Enabled  bool `yaml:"enabled"`
	Interval int  `yaml:"interval"`
	Overlap  int  `yaml:"overlap"`
}

// LoggingConfig selects log output shape.
type LoggingConfig struct {
	// Level is "debug", "info", "warn" or "error".
	Level string `yaml:"level"`
	// Format is "text" or "json".
	Format string `yaml:"format"`
}

// TracingConfig controls span export.
type TracingConfig struct {
	Enabled    bool   `yaml:"enabled"`
	OutputFile string `yaml:"output_file"`
}

// Default returns the configuration used when no file is provided.
func Default() *Config {
	return &Config{
		App: AppConfig{Name: "default"},
		Runner: RunnerConfig{
			TransferMode:      "continue",
			SessionBusyPolicy: "queue",
			EventBufferSize:   100,
			MaxModelCalls:     100,
		},
		Compaction: CompactionConfig{
			Enabled:  false,
			Interval: 10,
			Overlap:  2,
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load reads and validates a YAML configuration file. Absent fields keep
// their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks enumerated fields and numeric ranges.
func (c *Config) Validate() error {
	switch c.Runner.TransferMode {
	case "continue", "handoff":
	default:
		return fmt.Errorf("invalid transfer_mode %q (want continue or handoff)", c.Runner.TransferMode)
	}
	switch c.Runner.SessionBusyPolicy {
	case "queue", "reject":
	default:
		return fmt.Errorf("invalid session_busy_policy %q (want queue or reject)", c.Runner.SessionBusyPolicy)
	}
	if c.Runner.EventBufferSize < 1 {
		return fmt.Errorf("event_buffer_size must be positive, got %d", c.Runner.EventBufferSize)
	}
	if c.Runner.MaxModelCalls < 0 {
		return fmt.Errorf("max_model_calls must not be negative, got %d", c.Runner.MaxModelCalls)
	}
	if c.Compaction.Enabled {
		if c.Compaction.Interval < 1 {
			return fmt.Errorf("compaction interval must be positive, got %d", c.Compaction.Interval)
		}
		if c.Compaction.Overlap < 0 {
			return fmt.Errorf("compaction overlap must not be negative, got %d", c.Compaction.Overlap)
		}
	}
	return nil
}

// TransferMode converts the configured mode to its runner constant.
func (c *Config) TransferMode() runner.TransferMode {
	if c.Runner.TransferMode == "handoff" {
		return runner.TransferHandoff
	}
	return runner.TransferContinue
}

// SessionBusyPolicy converts the configured policy to its runner constant.
func (c *Config) SessionBusyPolicy() runner.SessionBusyPolicy {
	if c.Runner.SessionBusyPolicy == "reject" {
		return runner.BusyReject
	}
	return runner.BusyQueue
}

// RunnerOptions returns an option function applying this configuration to a
// runner.
func (c *Config) RunnerOptions() func(o *runner.Options) {
	return func(o *runner.Options) {
		o.AppName = c.App.Name
		o.TransferMode = c.TransferMode()
		o.SessionBusyPolicy = c.SessionBusyPolicy()
		o.EventBufferSize = c.Runner.EventBufferSize
		o.MaxModelCalls = c.Runner.MaxModelCalls
	}
}

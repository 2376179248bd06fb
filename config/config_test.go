package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenttree/agenttree/runner"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "default", cfg.App.Name)
	assert.Equal(t, "continue", cfg.Runner.TransferMode)
	assert.Equal(t, "queue", cfg.Runner.SessionBusyPolicy)
	assert.Equal(t, 100, cfg.Runner.EventBufferSize)
	assert.Equal(t, 100, cfg.Runner.MaxModelCalls)
	assert.False(t, cfg.Compaction.Enabled)
	assert.Equal(t, 10, cfg.Compaction.Interval)
	assert.Equal(t, 2, cfg.Compaction.Overlap)
	assert.Equal(t, "info", cfg.Logging.Level)

	require.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
app:
  name: support-desk
runner:
  transfer_mode: handoff
  session_busy_policy: reject
  max_model_calls: 25
compaction:
  enabled: true
  interval: 5
  overlap: 1
logging:
  level: debug
  format: json
tracing:
  enabled: true
  output_file: /tmp/traces.jsonl
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "support-desk", cfg.App.Name)
	assert.Equal(t, "handoff", cfg.Runner.TransferMode)
	assert.Equal(t, 25, cfg.Runner.MaxModelCalls)
	// Absent fields keep their defaults.
	assert.Equal(t, 100, cfg.Runner.EventBufferSize)
	assert.True(t, cfg.Compaction.Enabled)
	assert.Equal(t, 5, cfg.Compaction.Interval)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "/tmp/traces.jsonl", cfg.Tracing.OutputFile)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := writeConfig(t, "runner: [not a mapping")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr string
	}{
		{
			name:    "bad transfer mode",
			mutate:  func(cfg *Config) { cfg.Runner.TransferMode = "bounce" },
			wantErr: "transfer_mode",
		},
		{
			name:    "bad busy policy",
			mutate:  func(cfg *Config) { cfg.Runner.SessionBusyPolicy = "drop" },
			wantErr: "session_busy_policy",
		},
		{
			name:    "zero buffer",
			mutate:  func(cfg *Config) { cfg.Runner.EventBufferSize = 0 },
			wantErr: "event_buffer_size",
		},
		{
			name:    "negative model calls",
			mutate:  func(cfg *Config) { cfg.Runner.MaxModelCalls = -1 },
			wantErr: "max_model_calls",
		},
		{
			name: "zero compaction interval",
			mutate: func(cfg *Config) {
				cfg.Compaction.Enabled = true
				cfg.Compaction.Interval = 0
			},
			wantErr: "interval",
		},
		{
			name: "disabled compaction skips range checks",
			mutate: func(cfg *Config) {
				cfg.Compaction.Enabled = false
				cfg.Compaction.Interval = 0
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRunnerConversions(t *testing.T) {
	cfg := Default()
	assert.Equal(t, runner.TransferContinue, cfg.TransferMode())
	assert.Equal(t, runner.BusyQueue, cfg.SessionBusyPolicy())

	cfg.Runner.TransferMode = "handoff"
	cfg.Runner.SessionBusyPolicy = "reject"
	assert.Equal(t, runner.TransferHandoff, cfg.TransferMode())
	assert.Equal(t, runner.BusyReject, cfg.SessionBusyPolicy())
}

func TestRunnerOptions(t *testing.T) {
	cfg := Default()
	cfg.App.Name = "support-desk"
	cfg.Runner.TransferMode = "handoff"
	cfg.Runner.EventBufferSize = 16
	cfg.Runner.MaxModelCalls = 3

	var opts runner.Options
	cfg.RunnerOptions()(&opts)

	assert.Equal(t, "support-desk", opts.AppName)
	assert.Equal(t, runner.TransferHandoff, opts.TransferMode)
	assert.Equal(t, runner.BusyQueue, opts.SessionBusyPolicy)
	assert.Equal(t, 16, opts.EventBufferSize)
	assert.Equal(t, 3, opts.MaxModelCalls)
}

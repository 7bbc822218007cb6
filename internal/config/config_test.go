package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/mini-industry/internal/factory"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultsValidate(t *testing.T) {
	cfg := Default()

	require.NoError(t, ValidateConfig(cfg))
	assert.Equal(t, "jit2", cfg.Economy.Accounting)
	assert.Equal(t, 250*time.Millisecond, cfg.Sim.TickInterval)
	assert.Equal(t, 8, cfg.Builder.SearchRadius)
	assert.Equal(t, int64(200), cfg.Transport.StopCapacity)
}

func TestLoadConfigFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
sim:
  seed: 99
  width: 64
  tick_interval: 1s
economy:
  accounting: legacy
  max_intransit_percentage: 50
builder:
  max_depth: 2
`)

	cfg, err := LoadConfig(path)

	require.NoError(t, err)
	assert.Equal(t, int64(99), cfg.Sim.Seed)
	assert.Equal(t, 64, cfg.Sim.Width)
	assert.Equal(t, 128, cfg.Sim.Height, "untouched keys keep defaults")
	assert.Equal(t, time.Second, cfg.Sim.TickInterval)
	assert.Equal(t, "legacy", cfg.Economy.Accounting)
	assert.Equal(t, 2, cfg.Builder.MaxDepth)
	assert.Equal(t, 4, cfg.Builder.AttemptsPerInput)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, "sim:\n  seed: 99\n")
	t.Setenv("FS_SIM_SEED", "7")
	t.Setenv("FS_ECONOMY_ACCOUNTING", "legacy")

	cfg, err := LoadConfig(path)

	require.NoError(t, err)
	assert.Equal(t, int64(7), cfg.Sim.Seed)
	assert.Equal(t, "legacy", cfg.Economy.Accounting)
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"accounting", "economy:\n  accounting: barter\n"},
		{"radius", "builder:\n  search_radius: 10\n  max_radius: 5\n"},
		{"speed", "sim:\n  speed: 0\n"},
		{"log file", "logging:\n  output: file\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestOptions(t *testing.T) {
	cfg := Default()
	cfg.Economy.Accounting = "classic"
	cfg.Sim.Width = 40

	opts, err := cfg.Options()

	require.NoError(t, err)
	assert.Equal(t, factory.AccountingLegacy, opts.Economy.Accounting)
	assert.Equal(t, 40, opts.World.Width)
	assert.Equal(t, cfg.Sim.Seed, opts.Seed)
	assert.Equal(t, cfg.Builder, opts.Builder)
}

func TestJSONHandler(t *testing.T) {
	var buf bytes.Buffer
	l := LoggingConfig{Level: "warn", Format: "json"}
	h := l.Handler(&buf)

	logger := slog.New(h)
	logger.Info("hidden")
	logger.Warn("shown", "factory", "Mine")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "shown", line["msg"])
	assert.Equal(t, "Mine", line["factory"])
}

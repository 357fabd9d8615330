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
	path := filepath.Join(t.TempDir(), "portrun.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sqlite3", cfg.Store.Driver)
	assert.Equal(t, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), cfg.Schedule.Start)
	assert.Equal(t, int64(100), cfg.Engine.MaxOrderQty)
	assert.Equal(t, 2, cfg.Engine.MaxDealsPerMonth)
	assert.Equal(t, 0.10, cfg.Strategy.VolatilityTarget)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
store:
  driver: postgres
  dsn: host=localhost dbname=portrun sslmode=disable
engine:
  max_order_qty: 50
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, int64(50), cfg.Engine.MaxOrderQty)
	// untouched sections keep defaults
	assert.Equal(t, 2, cfg.Engine.MaxDealsPerMonth)
	assert.Equal(t, 30, cfg.Strategy.VolatilityWindow)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := writeConfig(t, "store: [not a map")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown driver", func(c *Config) { c.Store.Driver = "oracle" }},
		{"empty dsn", func(c *Config) { c.Store.DSN = "" }},
		{"inverted schedule", func(c *Config) { c.Schedule.End = c.Schedule.Start.AddDate(0, 0, -1) }},
		{"zero order clamp", func(c *Config) { c.Engine.MaxOrderQty = 0 }},
		{"zero monthly cap", func(c *Config) { c.Engine.MaxDealsPerMonth = 0 }},
		{"bad vol window", func(c *Config) { c.Strategy.VolatilityWindow = 1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, Default().Validate())
}

// Package config loads the simulator configuration from YAML with
// production defaults for anything left unset.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/quantfund/portrun/internal/engine"
	"github.com/quantfund/portrun/internal/ingest"
	"github.com/quantfund/portrun/internal/report"
	"github.com/quantfund/portrun/internal/seed"
	"github.com/quantfund/portrun/internal/strategy"
)

// StoreConfig selects the ledger backend.
type StoreConfig struct {
	Driver string `yaml:"driver"` // sqlite3 or postgres
	DSN    string `yaml:"dsn"`
}

// ScheduleConfig bounds the weekly simulation.
type ScheduleConfig struct {
	Start time.Time `yaml:"start"`
	End   time.Time `yaml:"end"`
}

// MonitorConfig configures the health/metrics endpoint.
type MonitorConfig struct {
	Addr string `yaml:"addr"`
}

// Config is the full simulator configuration.
type Config struct {
	Store    StoreConfig         `yaml:"store"`
	Schedule ScheduleConfig      `yaml:"schedule"`
	Strategy strategy.Params     `yaml:"strategy"`
	Engine   engine.Config       `yaml:"engine"`
	Report   report.Config       `yaml:"report"`
	Ingest   ingest.ClientConfig `yaml:"ingest"`
	Seed     seed.Config         `yaml:"seed"`
	Monitor  MonitorConfig       `yaml:"monitor"`
}

// Default returns the production configuration: a local SQLite ledger and
// the two-year weekly simulation window.
func Default() Config {
	return Config{
		Store: StoreConfig{
			Driver: "sqlite3",
			DSN:    "portrun.db",
		},
		Schedule: ScheduleConfig{
			Start: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
		},
		Strategy: strategy.DefaultParams(),
		Engine:   engine.DefaultConfig(),
		Report:   report.DefaultConfig(),
		Ingest:   ingest.DefaultClientConfig(),
		Seed:     seed.DefaultConfig(),
		Monitor:  MonitorConfig{Addr: ":8080"},
	}
}

// Load reads a YAML config file over the defaults. An empty path returns
// the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects configurations the simulator cannot run with.
func (c Config) Validate() error {
	if c.Store.Driver != "sqlite3" && c.Store.Driver != "postgres" {
		return fmt.Errorf("unsupported store driver %q", c.Store.Driver)
	}
	if c.Store.DSN == "" {
		return fmt.Errorf("store DSN is required")
	}
	if c.Schedule.End.Before(c.Schedule.Start) {
		return fmt.Errorf("schedule end %s precedes start %s",
			c.Schedule.End.Format("2006-01-02"), c.Schedule.Start.Format("2006-01-02"))
	}
	if c.Engine.MaxOrderQty <= 0 {
		return fmt.Errorf("max order qty must be positive")
	}
	if c.Engine.MaxDealsPerMonth <= 0 {
		return fmt.Errorf("max deals per month must be positive")
	}
	if c.Strategy.VolatilityWindow <= 1 || c.Strategy.MomentumWindow <= 0 || c.Strategy.EquityMomentumWindow <= 0 {
		return fmt.Errorf("strategy windows must be positive")
	}
	return nil
}

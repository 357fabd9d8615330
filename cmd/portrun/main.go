package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/quantfund/portrun/internal/config"
	"github.com/quantfund/portrun/internal/persistence"
	"github.com/quantfund/portrun/internal/persistence/sqldb"
)

const (
	appName = "portrun"
	version = "v1.0.0"
)

var (
	configPath string
	logLevel   string
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Weekly portfolio rebalancing simulator",
		Version: version,
		Long: `portrun replays a weekly rebalancing schedule over stored daily returns:
per-profile strategies decide target adjustments, a constrained execution
engine turns them into ledger trades, and the report command scores the
managers afterwards.`,
		PersistentPreRunE: setupLogging,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config (defaults built in)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (trace|debug|info|warn|error)")

	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(ingestCmd())
	rootCmd.AddCommand(rebalanceCmd())
	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(monitorCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setupLogging routes zerolog to a console writer on a terminal and JSON
// otherwise, so piped output stays machine readable.
func setupLogging(cmd *cobra.Command, args []string) error {
	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", logLevel, err)
	}
	zerolog.SetGlobalLevel(level)

	if term.IsTerminal(int(os.Stderr.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	return nil
}

// loadConfig reads the config selected by --config.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// openStore connects to the ledger store, runs migrations, and returns the
// repository set. The caller closes the handle.
func openStore(ctx context.Context, cfg config.Config) (*sqlx.DB, persistence.Repository, error) {
	db, err := sqldb.Open(cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return nil, persistence.Repository{}, fmt.Errorf("failed to open store: %w", err)
	}
	if err := sqldb.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, persistence.Repository{}, fmt.Errorf("failed to migrate store: %w", err)
	}
	return db, sqldb.NewRepository(db, sqldb.DefaultTimeout), nil
}

package main

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/quantfund/portrun/internal/engine"
	"github.com/quantfund/portrun/internal/metrics"
	"github.com/quantfund/portrun/internal/scheduler"
)

func rebalanceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rebalance",
		Short: "Run the weekly rebalancing simulation",
		Long:  "Walk every Monday in the schedule window, decide per-portfolio adjustments, and record the surviving trades in the ledger.",
		RunE:  runRebalance,
	}
	cmd.Flags().Bool("dry-run", false, "Evaluate decisions and constraints without writing trades")
	cmd.Flags().String("from", "", "Override schedule start (YYYY-MM-DD)")
	cmd.Flags().String("to", "", "Override schedule end (YYYY-MM-DD)")
	return cmd
}

func runRebalance(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	schedCfg := scheduler.Config{
		Start: cfg.Schedule.Start,
		End:   cfg.Schedule.End,
	}
	schedCfg.DryRun, _ = cmd.Flags().GetBool("dry-run")
	if err := overrideDate(cmd, "from", &schedCfg.Start); err != nil {
		return err
	}
	if err := overrideDate(cmd, "to", &schedCfg.End); err != nil {
		return err
	}

	db, repo, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	reg := metrics.NewRegistry()
	exec := engine.New(repo.Managers, repo.Trades, cfg.Engine, log.Logger)
	sched := scheduler.New(repo, exec, cfg.Strategy, reg, schedCfg, log.Logger)

	summary, err := sched.Run(cmd.Context())
	if err != nil {
		return fmt.Errorf("rebalancing run failed: %w", err)
	}

	log.Info().
		Str("run_id", summary.RunID).
		Int("mondays", summary.Mondays).
		Int("events", summary.Events).
		Int("trades", summary.Trades).
		Int("cap_blocked", summary.CapBlocked).
		Int("skipped", summary.Skipped).
		Int("errors", summary.Errors).
		Bool("dry_run", schedCfg.DryRun).
		Msg("Rebalancing run complete")
	return nil
}

func overrideDate(cmd *cobra.Command, name string, dst *time.Time) error {
	raw, _ := cmd.Flags().GetString(name)
	if raw == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return fmt.Errorf("invalid --%s date %q: %w", name, raw, err)
	}
	*dst = t
	return nil
}

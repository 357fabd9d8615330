package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/quantfund/portrun/internal/persistence"
	"github.com/quantfund/portrun/internal/report"
)

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Score portfolios and managers over the schedule window",
		Long:  "Compute cumulative return, Sharpe, volatility, max drawdown, and beta per portfolio, and attribute the best manager.",
		RunE:  runReport,
	}
	cmd.Flags().Int64("trades", 0, "Also list recent trades for the given portfolio ID")
	cmd.Flags().Int("trades-limit", 10, "How many recent trades to list")
	return cmd
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, repo, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	builder := report.NewBuilder(repo, cfg.Report, log.Logger)
	dr := persistence.DateRange{From: cfg.Schedule.Start, To: cfg.Schedule.End}

	rep, err := builder.Build(cmd.Context(), dr)
	if err != nil {
		return fmt.Errorf("report build failed: %w", err)
	}
	rep.Render(os.Stdout)

	portfolioID, _ := cmd.Flags().GetInt64("trades")
	if portfolioID > 0 {
		limit, _ := cmd.Flags().GetInt("trades-limit")
		lines, err := builder.RecentTrades(cmd.Context(), portfolioID, limit)
		if err != nil {
			return fmt.Errorf("failed to list trades: %w", err)
		}
		fmt.Fprintf(os.Stdout, "\nRecent trades for portfolio %d:\n", portfolioID)
		for _, l := range lines {
			fmt.Fprintf(os.Stdout, "  %s  %-4s %4d  %s\n", l.Date.Format("2006-01-02"), l.Side, l.Qty, l.Instrument)
		}
	}
	return nil
}

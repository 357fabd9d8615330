package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/quantfund/portrun/internal/ingest"
	"github.com/quantfund/portrun/internal/persistence"
)

func ingestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Load daily returns from the price source",
		Long:  "Fetch daily closes for every catalog instrument, clean them into daily returns, and store them.",
		RunE:  runIngest,
	}
	return cmd
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, repo, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	client := ingest.NewClient(cfg.Ingest, log.Logger)
	ing := ingest.NewIngestor(client, repo, log.Logger)

	dr := persistence.DateRange{From: cfg.Seed.From, To: cfg.Seed.To}
	stats, err := ing.Run(cmd.Context(), dr)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}
	if stats.Failed > 0 && stats.Instruments == 0 {
		return fmt.Errorf("ingestion loaded no instruments (%d failed)", stats.Failed)
	}
	return nil
}

package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/quantfund/portrun/internal/seed"
)

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Bootstrap a fresh store",
		Long:  "Seed the instrument catalog, one portfolio and manager per risk profile, and optionally a synthetic return history.",
		RunE:  runSeed,
	}
	cmd.Flags().Bool("no-returns", false, "Skip the synthetic return history")
	return cmd
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, repo, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	seedCfg := cfg.Seed
	if skip, _ := cmd.Flags().GetBool("no-returns"); skip {
		seedCfg.SyntheticReturns = false
	}

	seeder := seed.NewSeeder(repo, log.Logger)
	if err := seeder.Run(cmd.Context(), seedCfg); err != nil {
		return fmt.Errorf("seeding failed: %w", err)
	}
	log.Info().Str("driver", cfg.Store.Driver).Msg("Store seeded")
	return nil
}

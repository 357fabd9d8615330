package ingest

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/quantfund/portrun/internal/domain"
	"github.com/quantfund/portrun/internal/persistence"
)

// Ingestor loads cleaned daily returns for every catalog instrument.
type Ingestor struct {
	client *Client
	repo   persistence.Repository
	log    zerolog.Logger
}

// NewIngestor creates an ingestor over the given source and store.
func NewIngestor(client *Client, repo persistence.Repository, log zerolog.Logger) *Ingestor {
	return &Ingestor{client: client, repo: repo, log: log}
}

// Stats summarizes one ingestion run.
type Stats struct {
	Instruments int
	Rows        int
	Failed      int
}

// Run fetches, cleans, and stores daily returns for all instruments over
// the range. A failing ticker is logged and skipped so one bad symbol does
// not abort the whole load.
func (ing *Ingestor) Run(ctx context.Context, dr persistence.DateRange) (Stats, error) {
	instruments, err := ing.repo.Instruments.List(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to list instruments: %w", err)
	}

	var stats Stats
	for _, inst := range instruments {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		n, err := ing.loadInstrument(ctx, inst, dr)
		if err != nil {
			stats.Failed++
			ing.log.Error().Err(err).Str("ticker", inst.Ticker).Msg("Ingestion failed for instrument")
			continue
		}
		stats.Instruments++
		stats.Rows += n
	}

	ing.log.Info().
		Int("instruments", stats.Instruments).
		Int("rows", stats.Rows).
		Int("failed", stats.Failed).
		Msg("Ingestion complete")
	return stats, nil
}

func (ing *Ingestor) loadInstrument(ctx context.Context, inst domain.Instrument, dr persistence.DateRange) (int, error) {
	closes, err := ing.client.DailyCloses(ctx, inst.Ticker, dr)
	if err != nil {
		return 0, err
	}
	rets := Dedupe(ReturnsFromCloses(closes, ExtremeReturnThreshold))
	if len(rets) == 0 {
		ing.log.Warn().Str("ticker", inst.Ticker).Msg("No usable returns in range")
		return 0, nil
	}

	obs := make([]domain.ReturnObservation, 0, len(rets))
	for _, r := range rets {
		obs = append(obs, domain.ReturnObservation{
			Date:         r.Date,
			InstrumentID: inst.ID,
			Ticker:       inst.Ticker,
			Value:        r.Value,
		})
	}
	if err := ing.repo.Returns.InsertBatch(ctx, obs); err != nil {
		return 0, fmt.Errorf("failed to store returns: %w", err)
	}
	return len(obs), nil
}

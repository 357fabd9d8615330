// Package scheduler drives the weekly rebalancing loop: a single-threaded
// walk over a fixed historical date range that fires the strategy engine
// and the execution unit for every portfolio on every Monday. Dates advance
// strictly in ascending order because position and frequency checks depend
// on all earlier trades being committed.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/quantfund/portrun/internal/domain"
	"github.com/quantfund/portrun/internal/engine"
	"github.com/quantfund/portrun/internal/metrics"
	"github.com/quantfund/portrun/internal/persistence"
	"github.com/quantfund/portrun/internal/returns"
	"github.com/quantfund/portrun/internal/strategy"
)

// Config holds the loop boundaries.
type Config struct {
	Start  time.Time
	End    time.Time
	DryRun bool
}

// Summary reports what a full run did.
type Summary struct {
	RunID      string
	Mondays    int
	Events     int // (portfolio, date) pairs with at least one available instrument
	Trades     int
	CapBlocked int
	Skipped    int // portfolios skipped for a date (no data, invalid profile)
	Errors     int // events aborted by referential or storage failures
}

// Scheduler owns one run of the historical loop.
type Scheduler struct {
	repo    persistence.Repository
	exec    *engine.Executor
	params  strategy.Params
	metrics *metrics.Registry
	cfg     Config
	log     zerolog.Logger
}

// New creates a scheduler over the given store and executor.
func New(repo persistence.Repository, exec *engine.Executor, params strategy.Params, reg *metrics.Registry, cfg Config, log zerolog.Logger) *Scheduler {
	return &Scheduler{repo: repo, exec: exec, params: params, metrics: reg, cfg: cfg, log: log}
}

// Run walks the date range day by day and rebalances every portfolio on
// each Monday. The full return series up to the range end is loaded once
// and truncated per date, so every Monday sees only observations at or
// before it. Failures abort only the current (portfolio, date) unit; the
// loop always advances, so a portfolio with no data catches up on its own
// once observations appear.
func (s *Scheduler) Run(ctx context.Context) (*Summary, error) {
	summary := &Summary{RunID: uuid.NewString()}

	s.log.Info().
		Str("run_id", summary.RunID).
		Time("start", s.cfg.Start).
		Time("end", s.cfg.End).
		Bool("dry_run", s.cfg.DryRun).
		Msg("Rebalance run starting")

	portfolios, err := s.repo.Portfolios.List(ctx)
	if err != nil {
		return summary, fmt.Errorf("failed to load portfolios: %w", err)
	}
	instruments, err := s.repo.Instruments.List(ctx)
	if err != nil {
		return summary, fmt.Errorf("failed to load instruments: %w", err)
	}
	obs, err := s.repo.Returns.ListUpTo(ctx, returns.Day(s.cfg.End))
	if err != nil {
		return summary, fmt.Errorf("failed to load return series: %w", err)
	}
	table := returns.Pivot(obs)

	byID := make(map[int64]domain.Instrument, len(instruments))
	byTicker := make(map[string]domain.Instrument, len(instruments))
	for _, ins := range instruments {
		byID[ins.ID] = ins
		byTicker[ins.Ticker] = ins
	}

	for d := returns.Day(s.cfg.Start); !d.After(returns.Day(s.cfg.End)); d = d.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if d.Weekday() != time.Monday {
			continue
		}
		summary.Mondays++
		view := table.Truncate(d)
		for _, portfolio := range portfolios {
			s.runPortfolio(ctx, d, portfolio, view, byID, byTicker, summary)
		}
	}

	s.metrics.RebalanceRuns.Inc()
	s.metrics.LastRunTimestamp.SetToCurrentTime()

	s.log.Info().
		Str("run_id", summary.RunID).
		Int("mondays", summary.Mondays).
		Int("events", summary.Events).
		Int("trades", summary.Trades).
		Int("cap_blocked", summary.CapBlocked).
		Int("skipped", summary.Skipped).
		Int("errors", summary.Errors).
		Msg("Rebalance run finished")
	return summary, nil
}

// runPortfolio executes one (portfolio, date) rebalancing event.
func (s *Scheduler) runPortfolio(ctx context.Context, date time.Time, portfolio domain.Portfolio, table *returns.Table, byID map[int64]domain.Instrument, byTicker map[string]domain.Instrument, summary *Summary) {
	if !portfolio.RiskProfile.Valid() {
		summary.Skipped++
		s.metrics.EventsSkipped.WithLabelValues(metrics.SkipError).Inc()
		s.log.Warn().
			Int64("portfolio_id", portfolio.ID).
			Str("risk_profile", string(portfolio.RiskProfile)).
			Msg("Portfolio has unknown risk profile, rejected")
		return
	}

	// Resolve the authorized universe to tickers, preserving order, then
	// restrict to instruments the return series actually has on this date.
	authorized := make([]string, 0, len(portfolio.InstrumentIDs))
	for _, id := range portfolio.InstrumentIDs {
		ins, ok := byID[id]
		if !ok {
			s.log.Warn().
				Int64("portfolio_id", portfolio.ID).
				Int64("instrument_id", id).
				Msg("Authorized instrument does not exist, ignored")
			continue
		}
		authorized = append(authorized, ins.Ticker)
	}

	view := table.Select(authorized)
	if len(view.Tickers()) == 0 || view.Len() == 0 {
		// Skipped for this date only; the portfolio is retried next Monday.
		summary.Skipped++
		s.metrics.EventsSkipped.WithLabelValues(metrics.SkipNoData).Inc()
		return
	}

	decisions, err := strategy.Decide(portfolio.RiskProfile, view, s.params)
	if err != nil {
		summary.Errors++
		s.metrics.EventsSkipped.WithLabelValues(metrics.SkipError).Inc()
		s.log.Error().Err(err).Int64("portfolio_id", portfolio.ID).Msg("Strategy decision failed")
		return
	}

	summary.Events++
	result, err := s.exec.Execute(ctx, date, portfolio, decisions, byTicker, applyFrequencyCap(portfolio.RiskProfile), s.cfg.DryRun)
	if err != nil {
		summary.Errors++
		s.metrics.EventsSkipped.WithLabelValues(metrics.SkipError).Inc()
		s.log.Error().Err(err).
			Int64("portfolio_id", portfolio.ID).
			Time("date", date).
			Msg("Rebalancing event aborted")
		return
	}

	if result.CapBlocked {
		summary.CapBlocked++
		s.metrics.EventsSkipped.WithLabelValues(metrics.SkipCapBlocked).Inc()
		s.metrics.RebalanceEvents.WithLabelValues("cap_blocked").Inc()
		return
	}

	summary.Trades += len(result.Trades)
	for _, t := range result.Trades {
		s.metrics.TradesRecorded.WithLabelValues(t.Side()).Inc()
	}
	s.metrics.RebalanceEvents.WithLabelValues("executed").Inc()
}

// applyFrequencyCap reports whether the execution-stage monthly cap applies
// to a profile. Only low_turnover is capped; the cap is layered on top of
// that profile's decision-stage ranking limit.
func applyFrequencyCap(profile domain.RiskProfile) bool {
	return profile == domain.LowTurnover
}

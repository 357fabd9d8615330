// Package engine contains the trade constraint and execution unit: it takes
// raw strategy decisions and turns them into ledger entries, enforcing the
// magnitude clamp, the monthly frequency cap, and the no-short-selling rule
// before anything is persisted. Constraint enforcement is proactive; nothing
// is rolled back after the fact.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantfund/portrun/internal/domain"
	"github.com/quantfund/portrun/internal/persistence"
	"github.com/quantfund/portrun/internal/strategy"
)

// Config holds the execution constraints.
type Config struct {
	MaxOrderQty      int64 `yaml:"max_order_qty"`       // per-trade magnitude clamp
	MaxDealsPerMonth int   `yaml:"max_deals_per_month"` // frequency cap for capped profiles
}

// DefaultConfig returns the production constraints.
func DefaultConfig() Config {
	return Config{
		MaxOrderQty:      100,
		MaxDealsPerMonth: 2,
	}
}

// Result describes what one execution call did.
type Result struct {
	Trades     []domain.Trade // trades committed (or planned, in dry-run)
	CapBlocked bool           // whole call rejected by the frequency cap
}

// Executor persists constrained trades for one (portfolio, date) event.
type Executor struct {
	managers persistence.ManagersRepo
	trades   persistence.TradesRepo
	cfg      Config
	log      zerolog.Logger
}

// New creates an executor over the ledger.
func New(managers persistence.ManagersRepo, trades persistence.TradesRepo, cfg Config, log zerolog.Logger) *Executor {
	return &Executor{managers: managers, trades: trades, cfg: cfg, log: log}
}

// Execute applies the constraint pipeline to the decisions, in order, and
// commits the surviving trades as one atomic batch. instruments is the
// read-only ticker lookup for the run; a decision whose ticker does not
// resolve is skipped without side effects. Current position and the monthly
// deal count are folded fresh from the ledger on every call, so re-running
// over an already-populated ledger never double-counts.
func (e *Executor) Execute(ctx context.Context, date time.Time, portfolio domain.Portfolio, decisions []strategy.Decision, instruments map[string]domain.Instrument, applyCap, dryRun bool) (*Result, error) {
	manager, err := e.managers.ForPortfolio(ctx, portfolio.ID)
	if err != nil {
		return nil, fmt.Errorf("portfolio %d: %w", portfolio.ID, err)
	}

	positions, err := e.trades.Positions(ctx, portfolio.ID)
	if err != nil {
		return nil, fmt.Errorf("portfolio %d: failed to load positions: %w", portfolio.ID, err)
	}

	monthStart := time.Date(date.Year(), date.Month(), 1, 0, 0, 0, 0, time.UTC)
	dealsThisMonth, err := e.trades.CountSince(ctx, portfolio.ID, monthStart)
	if err != nil {
		return nil, fmt.Errorf("portfolio %d: failed to count monthly deals: %w", portfolio.ID, err)
	}

	if applyCap && dealsThisMonth >= e.cfg.MaxDealsPerMonth {
		e.log.Info().
			Int64("portfolio_id", portfolio.ID).
			Str("month", date.Format("2006-01")).
			Int("deals", dealsThisMonth).
			Msg("Monthly deal limit reached, rebalancing event skipped")
		return &Result{CapBlocked: true}, nil
	}

	var batch []domain.Trade
	for _, d := range decisions {
		// The cap is re-checked inside the loop: once the running counter
		// hits the limit, remaining decisions are abandoned, not just skipped.
		if applyCap && dealsThisMonth >= e.cfg.MaxDealsPerMonth {
			e.log.Info().
				Int64("portfolio_id", portfolio.ID).
				Str("month", date.Format("2006-01")).
				Msg("Monthly deal limit reached mid-batch, remaining decisions dropped")
			break
		}

		instrument, ok := instruments[d.Ticker]
		if !ok {
			e.log.Warn().
				Int64("portfolio_id", portfolio.ID).
				Str("ticker", d.Ticker).
				Msg("Decision references unknown instrument, skipped")
			continue
		}

		qty := clamp(d.Qty, e.cfg.MaxOrderQty)
		switch {
		case qty > 0:
			// Buys are never blocked by current holdings.
			batch = append(batch, domain.Trade{
				Date:         date,
				PortfolioID:  portfolio.ID,
				ManagerID:    manager.ID,
				InstrumentID: instrument.ID,
				Qty:          qty,
			})
			dealsThisMonth++
			e.log.Debug().
				Int64("portfolio_id", portfolio.ID).
				Str("ticker", d.Ticker).
				Int64("qty", qty).
				Msg("Buy recorded")
		case qty < 0:
			// Short selling is disallowed: sell at most what the ledger holds.
			sellQty := -qty
			if held := positions[instrument.ID]; held < sellQty {
				sellQty = held
			}
			if sellQty <= 0 {
				continue
			}
			batch = append(batch, domain.Trade{
				Date:         date,
				PortfolioID:  portfolio.ID,
				ManagerID:    manager.ID,
				InstrumentID: instrument.ID,
				Qty:          -sellQty,
			})
			dealsThisMonth++
			e.log.Debug().
				Int64("portfolio_id", portfolio.ID).
				Str("ticker", d.Ticker).
				Int64("qty", sellQty).
				Msg("Sell recorded")
		}
	}

	if dryRun || len(batch) == 0 {
		return &Result{Trades: batch}, nil
	}

	if err := e.trades.InsertBatch(ctx, batch); err != nil {
		return nil, fmt.Errorf("portfolio %d: failed to commit trades: %w", portfolio.ID, err)
	}
	return &Result{Trades: batch}, nil
}

// clamp bounds the magnitude at limit, preserving sign.
func clamp(qty, limit int64) int64 {
	if qty > limit {
		return limit
	}
	if qty < -limit {
		return -limit
	}
	return qty
}

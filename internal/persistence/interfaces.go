// Package persistence defines the narrow query contract between the core
// engine and the relational store. The engine never touches SQL directly;
// it reads and writes through these interfaces so position and frequency
// invariants stay derivable from the ledger alone.
package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/quantfund/portrun/internal/domain"
)

// ErrNoManager is returned when a portfolio has no manager assigned.
// Execution requires exactly one manager per portfolio.
var ErrNoManager = errors.New("no manager assigned to portfolio")

// DateRange is an inclusive calendar window for data queries.
type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// DailyReturn is one date's aggregated return value, used for portfolio
// and benchmark series.
type DailyReturn struct {
	Date  time.Time `db:"date"`
	Value float64   `db:"return_value"`
}

// InstrumentsRepo provides read access to the instrument catalog.
type InstrumentsRepo interface {
	// InsertBatch adds catalog entries; instruments are immutable once created.
	InsertBatch(ctx context.Context, instruments []domain.Instrument) error

	// List returns the full catalog.
	List(ctx context.Context) ([]domain.Instrument, error)
}

// PortfoliosRepo provides access to portfolio definitions.
type PortfoliosRepo interface {
	// Insert adds a portfolio and assigns its ID.
	Insert(ctx context.Context, p *domain.Portfolio) error

	// List returns all portfolios with their authorized instrument sets.
	List(ctx context.Context) ([]domain.Portfolio, error)
}

// ManagersRepo provides access to manager assignments.
type ManagersRepo interface {
	// Insert adds a manager and assigns its ID.
	Insert(ctx context.Context, m *domain.Manager) error

	// ForPortfolio resolves the manager assigned to a portfolio.
	// Returns ErrNoManager when none exists.
	ForPortfolio(ctx context.Context, portfolioID int64) (*domain.Manager, error)
}

// TradesRepo provides the append-only trade ledger. Current positions and
// monthly deal counts are folds over this ledger, never cached counters.
type TradesRepo interface {
	// InsertBatch appends all trades of one rebalancing call atomically:
	// a failure leaves no partial batch visible.
	InsertBatch(ctx context.Context, trades []domain.Trade) error

	// Positions folds the ledger into current held quantity per instrument
	// for a portfolio.
	Positions(ctx context.Context, portfolioID int64) (map[int64]int64, error)

	// CountSince counts ledger entries for a portfolio with date >= since.
	CountSince(ctx context.Context, portfolioID int64, since time.Time) (int, error)

	// ListRecent returns the latest trades for a portfolio, newest first.
	ListRecent(ctx context.Context, portfolioID int64, limit int) ([]domain.Trade, error)
}

// ReturnsRepo provides read access to the daily return series and the
// write path used by the ingestion collaborator.
type ReturnsRepo interface {
	// InsertBatch stores observations produced by ingestion.
	InsertBatch(ctx context.Context, obs []domain.ReturnObservation) error

	// ListUpTo returns all observations with date <= cutoff. The caller
	// de-duplicates by (date, ticker) when pivoting into a wide table.
	ListUpTo(ctx context.Context, cutoff time.Time) ([]domain.ReturnObservation, error)

	// PortfolioDaily aggregates the equal-weight mean daily return across
	// the given instruments over the range, one row per date, ascending.
	PortfolioDaily(ctx context.Context, instrumentIDs []int64, r DateRange) ([]DailyReturn, error)

	// SeriesByTicker returns one instrument's daily series over the range,
	// ascending by date.
	SeriesByTicker(ctx context.Context, ticker string, r DateRange) ([]DailyReturn, error)
}

// Repository aggregates all persistence interfaces.
type Repository struct {
	Instruments InstrumentsRepo
	Portfolios  PortfoliosRepo
	Managers    ManagersRepo
	Trades      TradesRepo
	Returns     ReturnsRepo
}

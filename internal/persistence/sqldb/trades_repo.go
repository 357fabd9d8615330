package sqldb

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/quantfund/portrun/internal/domain"
	"github.com/quantfund/portrun/internal/persistence"
)

// tradesRepo implements TradesRepo over the relational ledger.
type tradesRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewTradesRepo creates the trade ledger repository.
func NewTradesRepo(db *sqlx.DB, timeout time.Duration) persistence.TradesRepo {
	return &tradesRepo{db: db, timeout: timeout}
}

// InsertBatch appends all trades of one rebalancing call in a single
// transaction. Either every row commits or none does.
func (r *tradesRepo) InsertBatch(ctx context.Context, trades []domain.Trade) error {
	if len(trades) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, r.db.Rebind(`
		INSERT INTO trades (date, portfolio_id, manager_id, instrument_id, qty)
		VALUES (?, ?, ?, ?, ?)`))
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, t := range trades {
		if _, err := stmt.ExecContext(ctx,
			dayUTC(t.Date), t.PortfolioID, t.ManagerID, t.InstrumentID, t.Qty); err != nil {
			return fmt.Errorf("failed to insert trade in batch: %w", err)
		}
	}

	return tx.Commit()
}

// Positions folds the full ledger of a portfolio into net quantity per
// instrument.
func (r *tradesRepo) Positions(ctx context.Context, portfolioID int64) (map[int64]int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.QueryxContext(ctx, r.db.Rebind(`
		SELECT instrument_id, SUM(qty) AS total
		FROM trades
		WHERE portfolio_id = ?
		GROUP BY instrument_id`), portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	positions := make(map[int64]int64)
	for rows.Next() {
		var instrumentID, total int64
		if err := rows.Scan(&instrumentID, &total); err != nil {
			return nil, fmt.Errorf("failed to scan position row: %w", err)
		}
		positions[instrumentID] = total
	}
	return positions, rows.Err()
}

// CountSince counts ledger entries at or after the given date.
func (r *tradesRepo) CountSince(ctx context.Context, portfolioID int64, since time.Time) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var count int
	err := r.db.GetContext(ctx, &count, r.db.Rebind(`
		SELECT COUNT(*) FROM trades
		WHERE portfolio_id = ? AND date >= ?`), portfolioID, dayUTC(since))
	if err != nil {
		return 0, fmt.Errorf("failed to count trades: %w", err)
	}
	return count, nil
}

// ListRecent returns the newest trades for a portfolio.
func (r *tradesRepo) ListRecent(ctx context.Context, portfolioID int64, limit int) ([]domain.Trade, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var trades []domain.Trade
	err := r.db.SelectContext(ctx, &trades, r.db.Rebind(`
		SELECT id, date, portfolio_id, manager_id, instrument_id, qty
		FROM trades
		WHERE portfolio_id = ?
		ORDER BY date DESC, id DESC
		LIMIT ?`), portfolioID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent trades: %w", err)
	}
	return trades, nil
}

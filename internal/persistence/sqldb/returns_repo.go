package sqldb

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/quantfund/portrun/internal/domain"
	"github.com/quantfund/portrun/internal/persistence"
)

// returnsRepo implements ReturnsRepo. The series is written once by the
// ingestion collaborator and read-shared afterwards.
type returnsRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewReturnsRepo creates the return series repository.
func NewReturnsRepo(db *sqlx.DB, timeout time.Duration) persistence.ReturnsRepo {
	return &returnsRepo{db: db, timeout: timeout}
}

func (r *returnsRepo) InsertBatch(ctx context.Context, obs []domain.ReturnObservation) error {
	if len(obs) == 0 {
		return nil
	}

	// Bulk loads can be large; scale the budget with the batch.
	ctx, cancel := context.WithTimeout(ctx, r.timeout*time.Duration(len(obs)/1000+1))
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, r.db.Rebind(`
		INSERT INTO returns (instrument_id, ticker, date, return_value)
		VALUES (?, ?, ?, ?)`))
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, o := range obs {
		if _, err := stmt.ExecContext(ctx, o.InstrumentID, o.Ticker, dayUTC(o.Date), o.Value); err != nil {
			return fmt.Errorf("failed to insert return observation: %w", err)
		}
	}
	return tx.Commit()
}

func (r *returnsRepo) ListUpTo(ctx context.Context, cutoff time.Time) ([]domain.ReturnObservation, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var obs []domain.ReturnObservation
	err := r.db.SelectContext(ctx, &obs, r.db.Rebind(`
		SELECT instrument_id, ticker, date, return_value
		FROM returns
		WHERE date <= ?
		ORDER BY date, id`), dayUTC(cutoff))
	if err != nil {
		return nil, fmt.Errorf("failed to list return observations: %w", err)
	}
	return obs, nil
}

// PortfolioDaily mirrors the reporting aggregation: the portfolio's daily
// return is the equal-weight mean of its instruments' returns on each date.
func (r *returnsRepo) PortfolioDaily(ctx context.Context, instrumentIDs []int64, dr persistence.DateRange) ([]persistence.DailyReturn, error) {
	if len(instrumentIDs) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query, args, err := sqlx.In(`
		SELECT date, AVG(return_value) AS return_value
		FROM returns
		WHERE instrument_id IN (?) AND date >= ? AND date <= ?
		GROUP BY date
		ORDER BY date`, instrumentIDs, dayUTC(dr.From), dayUTC(dr.To))
	if err != nil {
		return nil, fmt.Errorf("failed to expand instrument filter: %w", err)
	}

	var series []persistence.DailyReturn
	if err := r.db.SelectContext(ctx, &series, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to aggregate portfolio returns: %w", err)
	}
	return series, nil
}

func (r *returnsRepo) SeriesByTicker(ctx context.Context, ticker string, dr persistence.DateRange) ([]persistence.DailyReturn, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var series []persistence.DailyReturn
	err := r.db.SelectContext(ctx, &series, r.db.Rebind(`
		SELECT date, return_value
		FROM returns
		WHERE ticker = ? AND date >= ? AND date <= ?
		ORDER BY date`), ticker, dayUTC(dr.From), dayUTC(dr.To))
	if err != nil {
		return nil, fmt.Errorf("failed to load series for %s: %w", ticker, err)
	}
	return series, nil
}

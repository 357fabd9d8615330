package sqldb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/quantfund/portrun/internal/domain"
	"github.com/quantfund/portrun/internal/persistence"
)

// instrumentsRepo implements InstrumentsRepo.
type instrumentsRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewInstrumentsRepo creates the instrument catalog repository.
func NewInstrumentsRepo(db *sqlx.DB, timeout time.Duration) persistence.InstrumentsRepo {
	return &instrumentsRepo{db: db, timeout: timeout}
}

func (r *instrumentsRepo) InsertBatch(ctx context.Context, instruments []domain.Instrument) error {
	if len(instruments) == 0 {
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
		INSERT INTO instruments (ticker, risk_profile, name) VALUES (?, ?, ?)`))
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, ins := range instruments {
		if !ins.RiskProfile.Valid() {
			return fmt.Errorf("instrument %s: invalid risk profile %q", ins.Ticker, ins.RiskProfile)
		}
		if _, err := stmt.ExecContext(ctx, ins.Ticker, ins.RiskProfile, ins.Name); err != nil {
			return fmt.Errorf("failed to insert instrument %s: %w", ins.Ticker, err)
		}
	}
	return tx.Commit()
}

func (r *instrumentsRepo) List(ctx context.Context) ([]domain.Instrument, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var instruments []domain.Instrument
	err := r.db.SelectContext(ctx, &instruments,
		`SELECT id, ticker, risk_profile, name FROM instruments ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list instruments: %w", err)
	}
	return instruments, nil
}

// portfoliosRepo implements PortfoliosRepo. The authorized instrument set
// is stored as a JSON array column, preserving order.
type portfoliosRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewPortfoliosRepo creates the portfolio repository.
func NewPortfoliosRepo(db *sqlx.DB, timeout time.Duration) persistence.PortfoliosRepo {
	return &portfoliosRepo{db: db, timeout: timeout}
}

func (r *portfoliosRepo) Insert(ctx context.Context, p *domain.Portfolio) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if !p.RiskProfile.Valid() {
		return fmt.Errorf("portfolio %s: invalid risk profile %q", p.Name, p.RiskProfile)
	}
	instrumentsJSON, err := json.Marshal(p.InstrumentIDs)
	if err != nil {
		return fmt.Errorf("failed to marshal instrument ids: %w", err)
	}

	if r.db.DriverName() == "postgres" {
		err = r.db.QueryRowxContext(ctx,
			`INSERT INTO portfolios (name, risk_profile, instruments) VALUES ($1, $2, $3) RETURNING id`,
			p.Name, p.RiskProfile, string(instrumentsJSON)).Scan(&p.ID)
		if err != nil {
			return fmt.Errorf("failed to insert portfolio: %w", err)
		}
		return nil
	}

	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO portfolios (name, risk_profile, instruments) VALUES (?, ?, ?)`),
		p.Name, p.RiskProfile, string(instrumentsJSON))
	if err != nil {
		return fmt.Errorf("failed to insert portfolio: %w", err)
	}
	p.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read portfolio id: %w", err)
	}
	return nil
}

func (r *portfoliosRepo) List(ctx context.Context) ([]domain.Portfolio, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.QueryxContext(ctx,
		`SELECT id, name, risk_profile, instruments FROM portfolios ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list portfolios: %w", err)
	}
	defer rows.Close()

	var portfolios []domain.Portfolio
	for rows.Next() {
		var (
			p       domain.Portfolio
			rawList string
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.RiskProfile, &rawList); err != nil {
			return nil, fmt.Errorf("failed to scan portfolio row: %w", err)
		}
		if err := json.Unmarshal([]byte(rawList), &p.InstrumentIDs); err != nil {
			return nil, fmt.Errorf("portfolio %d: failed to decode instrument ids: %w", p.ID, err)
		}
		portfolios = append(portfolios, p)
	}
	return portfolios, rows.Err()
}

// managersRepo implements ManagersRepo.
type managersRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewManagersRepo creates the manager repository.
func NewManagersRepo(db *sqlx.DB, timeout time.Duration) persistence.ManagersRepo {
	return &managersRepo{db: db, timeout: timeout}
}

func (r *managersRepo) Insert(ctx context.Context, m *domain.Manager) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if r.db.DriverName() == "postgres" {
		err := r.db.QueryRowxContext(ctx,
			`INSERT INTO managers (name, email, portfolio_id) VALUES ($1, $2, $3) RETURNING id`,
			m.Name, m.Email, m.PortfolioID).Scan(&m.ID)
		if err != nil {
			return fmt.Errorf("failed to insert manager: %w", err)
		}
		return nil
	}

	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO managers (name, email, portfolio_id) VALUES (?, ?, ?)`),
		m.Name, m.Email, m.PortfolioID)
	if err != nil {
		return fmt.Errorf("failed to insert manager: %w", err)
	}
	m.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read manager id: %w", err)
	}
	return nil
}

// ForPortfolio resolves the single manager of a portfolio. ErrNoManager is
// returned when the assignment is missing, which aborts the rebalancing
// call upstream.
func (r *managersRepo) ForPortfolio(ctx context.Context, portfolioID int64) (*domain.Manager, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var m domain.Manager
	err := r.db.GetContext(ctx, &m, r.db.Rebind(`
		SELECT id, name, email, portfolio_id FROM managers
		WHERE portfolio_id = ?
		ORDER BY id LIMIT 1`), portfolioID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.ErrNoManager
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve manager: %w", err)
	}
	return &m, nil
}

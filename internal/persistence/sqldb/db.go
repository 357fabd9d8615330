// Package sqldb implements the persistence contract on a relational store
// through sqlx. SQLite is the default embedded store; Postgres is supported
// through the same SQL surface for deployments that want a server.
package sqldb

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"           // postgres driver
	_ "github.com/mattn/go-sqlite3" // sqlite driver

	"github.com/quantfund/portrun/internal/persistence"
)

// DefaultTimeout bounds individual queries.
const DefaultTimeout = 5 * time.Second

// Open connects to the store and verifies connectivity.
func Open(driver, dsn string) (*sqlx.DB, error) {
	switch driver {
	case "sqlite3", "postgres":
	default:
		return nil, fmt.Errorf("unsupported store driver: %q", driver)
	}

	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s store: %w", driver, err)
	}
	if driver == "sqlite3" {
		// The ledger is written by a single batch process; one connection
		// avoids table-lock contention on concurrent test setup.
		db.SetMaxOpenConns(1)
	}
	return db, nil
}

// ddl holds the schema, ordered by foreign-key dependency. The %s slot is
// the driver-specific autoincrement primary key clause.
var ddl = []string{
	`CREATE TABLE IF NOT EXISTS instruments (
		id %s,
		ticker TEXT NOT NULL UNIQUE,
		risk_profile TEXT NOT NULL,
		name TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS portfolios (
		id %s,
		name TEXT NOT NULL,
		risk_profile TEXT NOT NULL,
		instruments TEXT NOT NULL DEFAULT '[]'
	)`,
	`CREATE TABLE IF NOT EXISTS managers (
		id %s,
		name TEXT NOT NULL,
		email TEXT NOT NULL,
		portfolio_id BIGINT NOT NULL REFERENCES portfolios(id)
	)`,
	`CREATE TABLE IF NOT EXISTS trades (
		id %s,
		date TIMESTAMP NOT NULL,
		portfolio_id BIGINT NOT NULL REFERENCES portfolios(id),
		manager_id BIGINT NOT NULL REFERENCES managers(id),
		instrument_id BIGINT NOT NULL REFERENCES instruments(id),
		qty BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS returns (
		id %s,
		instrument_id BIGINT NOT NULL REFERENCES instruments(id),
		ticker TEXT NOT NULL,
		date TIMESTAMP NOT NULL,
		return_value DOUBLE PRECISION NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_trades_portfolio_date ON trades(portfolio_id, date)`,
	`CREATE INDEX IF NOT EXISTS idx_returns_date ON returns(date)`,
	`CREATE INDEX IF NOT EXISTS idx_returns_ticker_date ON returns(ticker, date)`,
}

// Migrate creates the schema if it does not exist.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	pk := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if db.DriverName() == "postgres" {
		pk = "BIGSERIAL PRIMARY KEY"
	}
	for _, stmt := range ddl {
		q := stmt
		if containsSlot(q) {
			q = fmt.Sprintf(q, pk)
		}
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}
	return nil
}

func containsSlot(s string) bool {
	for i := 0; i+1 < len(s); i++ {
		if s[i] == '%' && s[i+1] == 's' {
			return true
		}
	}
	return false
}

// NewRepository wires all repositories over one connection.
func NewRepository(db *sqlx.DB, timeout time.Duration) persistence.Repository {
	return persistence.Repository{
		Instruments: NewInstrumentsRepo(db, timeout),
		Portfolios:  NewPortfoliosRepo(db, timeout),
		Managers:    NewManagersRepo(db, timeout),
		Trades:      NewTradesRepo(db, timeout),
		Returns:     NewReturnsRepo(db, timeout),
	}
}

// dayUTC normalizes timestamps to UTC calendar dates before storage so that
// date equality and GROUP BY date behave across drivers.
func dayUTC(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

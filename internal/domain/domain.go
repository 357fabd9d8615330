// Package domain holds the entities shared across the rebalancing engine:
// instruments, portfolios, managers, the append-only trade ledger, and
// daily return observations.
package domain

import (
	"fmt"
	"time"
)

// RiskProfile classifies both instruments and portfolios. The set is closed:
// every portfolio must carry exactly one of the three profiles, and the
// strategy dispatch is exhaustive over them.
type RiskProfile string

const (
	LowRisk             RiskProfile = "low_risk"
	LowTurnover         RiskProfile = "low_turnover"
	HighYieldEquityOnly RiskProfile = "high_yield_equity_only"
)

// ParseRiskProfile validates a raw profile string from storage or config.
func ParseRiskProfile(s string) (RiskProfile, error) {
	switch RiskProfile(s) {
	case LowRisk, LowTurnover, HighYieldEquityOnly:
		return RiskProfile(s), nil
	}
	return "", fmt.Errorf("invalid risk profile: %q", s)
}

// Valid reports whether the profile is one of the three known values.
func (p RiskProfile) Valid() bool {
	_, err := ParseRiskProfile(string(p))
	return err == nil
}

// Instrument is a tradable product. Immutable once created.
type Instrument struct {
	ID          int64       `json:"id" db:"id"`
	Ticker      string      `json:"ticker" db:"ticker"`
	RiskProfile RiskProfile `json:"risk_profile" db:"risk_profile"`
	Name        string      `json:"name" db:"name"`
}

// Portfolio is a managed book of instruments. InstrumentIDs is the ordered
// authorized universe, fixed for the duration of a run.
type Portfolio struct {
	ID            int64       `json:"id" db:"id"`
	Name          string      `json:"name" db:"name"`
	RiskProfile   RiskProfile `json:"risk_profile" db:"risk_profile"`
	InstrumentIDs []int64     `json:"instrument_ids"`
}

// Manager is assigned exactly one portfolio.
type Manager struct {
	ID          int64  `json:"id" db:"id"`
	Name        string `json:"name" db:"name"`
	Email       string `json:"email" db:"email"`
	PortfolioID int64  `json:"portfolio_id" db:"portfolio_id"`
}

// Trade is a single ledger entry. Entries are append-only and never mutated;
// the current position of an instrument in a portfolio is always the running
// sum of Qty over its ledger entries.
type Trade struct {
	ID           int64     `json:"id" db:"id"`
	Date         time.Time `json:"date" db:"date"`
	PortfolioID  int64     `json:"portfolio_id" db:"portfolio_id"`
	ManagerID    int64     `json:"manager_id" db:"manager_id"`
	InstrumentID int64     `json:"instrument_id" db:"instrument_id"`
	Qty          int64     `json:"qty" db:"qty"`
}

// Side labels a trade by the sign of its quantity.
func (t Trade) Side() string {
	switch {
	case t.Qty > 0:
		return "buy"
	case t.Qty < 0:
		return "sell"
	}
	return "flat"
}

// ReturnObservation is one daily fractional return for one instrument,
// produced by the ingestion collaborator and read-only afterwards.
type ReturnObservation struct {
	InstrumentID int64     `json:"instrument_id" db:"instrument_id"`
	Ticker       string    `json:"ticker" db:"ticker"`
	Date         time.Time `json:"date" db:"date"`
	Value        float64   `json:"return_value" db:"return_value"`
}

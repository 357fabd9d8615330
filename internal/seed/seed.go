// Package seed bootstraps a fresh store: the instrument catalog, one
// portfolio per risk profile with that profile's instruments, one manager
// per portfolio, and a deterministic synthetic return history so the
// simulator runs end to end without a live price source.
package seed

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantfund/portrun/internal/domain"
	"github.com/quantfund/portrun/internal/persistence"
	"github.com/quantfund/portrun/internal/returns"
)

// CatalogEntry is one instrument in the built-in catalog.
type CatalogEntry struct {
	Ticker      string
	Name        string
	RiskProfile domain.RiskProfile
}

// Catalog returns the built-in instrument universe: sovereign and
// defensive ETFs in the low-risk bucket, broad index and alternative ETFs
// in the low-turnover bucket, and single-name equities in the
// equity-momentum bucket.
func Catalog() []CatalogEntry {
	return []CatalogEntry{
		{"GOLD.PA", "ETF Amundi Physical Gold", domain.LowRisk},
		{"CW8.PA", "ETF Amundi MSCI World", domain.LowRisk},
		{"IFRB.L", "ETF iShares French Gov bonds", domain.LowRisk},
		{"SDEU.L", "ETF iShares Germany Gov", domain.LowRisk},
		{"82829.HK", "ETF iShares Chinese Gov", domain.LowRisk},
		{"GOVT", "ETF iShares US Gov Bonds", domain.LowRisk},
		{"500.PA", "ETF Amundi S&P 500", domain.LowTurnover},
		{"PRAC.DE", "ETF Amundi Corporate Bonds", domain.LowTurnover},
		{"IPRV.AS", "ETF iShares Private Equity", domain.LowTurnover},
		{"DPYA.L", "ETF iShares Dev Markets Property Yield", domain.LowTurnover},
		{"HLTW.PA", "ETF MSCI World Healthcare", domain.LowTurnover},
		{"AAPL", "Apple", domain.HighYieldEquityOnly},
		{"AMZN", "Amazon", domain.HighYieldEquityOnly},
		{"MSFT", "Microsoft Corporation", domain.HighYieldEquityOnly},
		{"GOOGL", "Google", domain.HighYieldEquityOnly},
		{"TSLA", "Tesla", domain.HighYieldEquityOnly},
		{"META", "Meta", domain.HighYieldEquityOnly},
		{"NVDA", "NVIDIA", domain.HighYieldEquityOnly},
		{"HO.PA", "Thales", domain.HighYieldEquityOnly},
		{"AIR.PA", "Airbus", domain.HighYieldEquityOnly},
		{"TTE.PA", "Total Energies", domain.HighYieldEquityOnly},
		{"MC.PA", "LVMH", domain.HighYieldEquityOnly},
		{"RMS.PA", "Hermes", domain.HighYieldEquityOnly},
		{"NVO", "Novo Nordisk", domain.HighYieldEquityOnly},
	}
}

// Config holds the seeding options.
type Config struct {
	From             time.Time `yaml:"from"`
	To               time.Time `yaml:"to"`
	SyntheticReturns bool      `yaml:"synthetic_returns"`
	RandomSeed       int64     `yaml:"random_seed"`
}

// DefaultConfig covers the full simulated history.
func DefaultConfig() Config {
	return Config{
		From:             time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC),
		To:               time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
		SyntheticReturns: true,
		RandomSeed:       42,
	}
}

// Seeder populates a fresh store.
type Seeder struct {
	repo persistence.Repository
	log  zerolog.Logger
}

// NewSeeder creates a seeder over the given store.
func NewSeeder(repo persistence.Repository, log zerolog.Logger) *Seeder {
	return &Seeder{repo: repo, log: log}
}

// Run seeds instruments, portfolios, managers, and optionally a synthetic
// return history. It assumes an empty store; re-running against a populated
// one duplicates the catalog.
func (s *Seeder) Run(ctx context.Context, cfg Config) error {
	catalog := Catalog()
	instruments := make([]domain.Instrument, 0, len(catalog))
	for _, e := range catalog {
		instruments = append(instruments, domain.Instrument{
			Ticker:      e.Ticker,
			Name:        e.Name,
			RiskProfile: e.RiskProfile,
		})
	}
	if err := s.repo.Instruments.InsertBatch(ctx, instruments); err != nil {
		return fmt.Errorf("failed to seed instruments: %w", err)
	}

	stored, err := s.repo.Instruments.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to read back instruments: %w", err)
	}

	byProfile := make(map[domain.RiskProfile][]int64)
	for _, inst := range stored {
		byProfile[inst.RiskProfile] = append(byProfile[inst.RiskProfile], inst.ID)
	}

	for _, profile := range []domain.RiskProfile{domain.LowRisk, domain.LowTurnover, domain.HighYieldEquityOnly} {
		ids := byProfile[profile]
		if len(ids) == 0 {
			continue
		}
		p := domain.Portfolio{
			Name:          "Portfolio_" + string(profile),
			RiskProfile:   profile,
			InstrumentIDs: ids,
		}
		if err := s.repo.Portfolios.Insert(ctx, &p); err != nil {
			return fmt.Errorf("failed to seed portfolio %s: %w", p.Name, err)
		}
		m := managerFor(p)
		if err := s.repo.Managers.Insert(ctx, &m); err != nil {
			return fmt.Errorf("failed to seed manager for %s: %w", p.Name, err)
		}
		s.log.Info().
			Str("portfolio", p.Name).
			Int64("portfolio_id", p.ID).
			Str("manager", m.Name).
			Int("instruments", len(ids)).
			Msg("Seeded portfolio")
	}

	if cfg.SyntheticReturns {
		n, err := s.seedReturns(ctx, stored, cfg)
		if err != nil {
			return fmt.Errorf("failed to seed returns: %w", err)
		}
		s.log.Info().Int("rows", n).Msg("Seeded synthetic return history")
	}
	return nil
}

// managerPool gives each portfolio a stable manager identity.
var managerPool = []string{"Alice Moreau", "Bruno Keller", "Chiara Fontana", "David Okafor", "Elena Vasquez"}

func managerFor(p domain.Portfolio) domain.Manager {
	name := managerPool[int(p.ID)%len(managerPool)]
	email := strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@portrun.example"
	return domain.Manager{Name: name, Email: email, PortfolioID: p.ID}
}

// seedReturns writes a deterministic weekday return series per instrument.
// Defensive buckets get low volatility, equities get higher volatility with
// a slight drift, so the strategies have real structure to react to.
func (s *Seeder) seedReturns(ctx context.Context, instruments []domain.Instrument, cfg Config) (int, error) {
	rng := rand.New(rand.NewSource(cfg.RandomSeed))

	var obs []domain.ReturnObservation
	for _, inst := range instruments {
		drift, vol := returnShape(inst.RiskProfile)
		for d := returns.Day(cfg.From); !d.After(returns.Day(cfg.To)); d = d.AddDate(0, 0, 1) {
			if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
				continue
			}
			v := drift + vol*rng.NormFloat64()
			// keep synthetic data inside the ingestion sanity bounds
			v = math.Max(-0.45, math.Min(0.45, v))
			obs = append(obs, domain.ReturnObservation{
				InstrumentID: inst.ID,
				Ticker:       inst.Ticker,
				Date:         d,
				Value:        v,
			})
		}
	}
	if err := s.repo.Returns.InsertBatch(ctx, obs); err != nil {
		return 0, err
	}
	return len(obs), nil
}

func returnShape(profile domain.RiskProfile) (drift, vol float64) {
	switch profile {
	case domain.LowRisk:
		return 0.0001, 0.004
	case domain.LowTurnover:
		return 0.0003, 0.009
	default:
		return 0.0006, 0.022
	}
}

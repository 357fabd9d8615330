// Package report reconstructs risk/return metrics from the stored return
// series and ledger: per-portfolio Sharpe, volatility, cumulative return,
// max drawdown, beta against a benchmark, plus manager attribution and a
// recent-deal listing.
package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantfund/portrun/internal/analytics"
	"github.com/quantfund/portrun/internal/persistence"
)

// Config holds reporting parameters.
type Config struct {
	RiskFreeRate    float64 `yaml:"risk_free_rate"`   // annual
	TradingDays     int     `yaml:"trading_days"`     // annualization factor
	BenchmarkTicker string  `yaml:"benchmark_ticker"` // series used for beta
}

// DefaultConfig returns the production reporting defaults.
func DefaultConfig() Config {
	return Config{
		RiskFreeRate:    analytics.DefaultRiskFreeRate,
		TradingDays:     analytics.DefaultTradingDays,
		BenchmarkTicker: "500.PA",
	}
}

// PortfolioPerformance is the metric row for one portfolio.
type PortfolioPerformance struct {
	Portfolio        string
	Manager          string
	Sharpe           float64
	Beta             float64
	CumulativeReturn float64
	Volatility       float64
	MaxDrawdown      float64
}

// Report is the full performance report over an evaluation window.
type Report struct {
	Range             persistence.DateRange
	Portfolios        []PortfolioPerformance
	BestManager       string
	BestManagerReturn float64
}

// TradeLine is one row of the recent-deal listing, with the quantity in
// absolute units and the side made explicit.
type TradeLine struct {
	Date       time.Time
	Instrument string
	Qty        int64
	Side       string
}

// Builder assembles reports from the store.
type Builder struct {
	repo persistence.Repository
	cfg  Config
	log  zerolog.Logger
}

// NewBuilder creates a report builder.
func NewBuilder(repo persistence.Repository, cfg Config, log zerolog.Logger) *Builder {
	return &Builder{repo: repo, cfg: cfg, log: log}
}

// Build computes metrics for every portfolio over the window. A portfolio
// with no return data in the window is omitted with a log line rather than
// reported with meaningless values; a missing benchmark leaves beta NaN for
// every row.
func (b *Builder) Build(ctx context.Context, dr persistence.DateRange) (*Report, error) {
	portfolios, err := b.repo.Portfolios.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load portfolios: %w", err)
	}

	benchmark, err := b.loadSeries(ctx, b.cfg.BenchmarkTicker, dr)
	if err != nil {
		return nil, err
	}
	if len(benchmark) == 0 {
		b.log.Warn().Str("ticker", b.cfg.BenchmarkTicker).Msg("No benchmark data, beta will be undefined")
	}

	report := &Report{Range: dr}
	managerReturns := make(map[string][]float64)

	for _, p := range portfolios {
		daily, err := b.repo.Returns.PortfolioDaily(ctx, p.InstrumentIDs, dr)
		if err != nil {
			return nil, fmt.Errorf("portfolio %s: %w", p.Name, err)
		}
		if len(daily) == 0 {
			b.log.Warn().Str("portfolio", p.Name).Msg("No return data in window, omitted from report")
			continue
		}

		series := toSeries(daily)
		rets := series.Returns()
		cum := analytics.CumulativeReturns(rets)

		row := PortfolioPerformance{
			Portfolio:        p.Name,
			Sharpe:           analytics.SharpeRatio(rets, b.cfg.RiskFreeRate, b.cfg.TradingDays),
			Beta:             analytics.Beta(series, benchmark),
			CumulativeReturn: cum[len(cum)-1],
			Volatility:       analytics.Volatility(rets, b.cfg.TradingDays),
			MaxDrawdown:      analytics.MaxDrawdown(cum),
		}

		manager, err := b.repo.Managers.ForPortfolio(ctx, p.ID)
		switch {
		case errors.Is(err, persistence.ErrNoManager):
			b.log.Warn().Str("portfolio", p.Name).Msg("Portfolio has no manager")
		case err != nil:
			return nil, fmt.Errorf("portfolio %s: %w", p.Name, err)
		default:
			row.Manager = manager.Name
			managerReturns[manager.Name] = append(managerReturns[manager.Name], row.CumulativeReturn)
		}

		report.Portfolios = append(report.Portfolios, row)
	}

	report.BestManager, report.BestManagerReturn = bestManager(managerReturns)
	return report, nil
}

// RecentTrades lists the newest ledger entries of a portfolio with
// instrument names resolved.
func (b *Builder) RecentTrades(ctx context.Context, portfolioID int64, limit int) ([]TradeLine, error) {
	trades, err := b.repo.Trades.ListRecent(ctx, portfolioID, limit)
	if err != nil {
		return nil, err
	}
	instruments, err := b.repo.Instruments.List(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[int64]string, len(instruments))
	for _, ins := range instruments {
		names[ins.ID] = ins.Name
	}

	lines := make([]TradeLine, 0, len(trades))
	for _, t := range trades {
		qty := t.Qty
		if qty < 0 {
			qty = -qty
		}
		lines = append(lines, TradeLine{
			Date:       t.Date,
			Instrument: names[t.InstrumentID],
			Qty:        qty,
			Side:       t.Side(),
		})
	}
	return lines, nil
}

// Render writes the report as a plain-text table.
func (r *Report) Render(w io.Writer) {
	fmt.Fprintf(w, "Performance %s .. %s\n\n",
		r.Range.From.Format("2006-01-02"), r.Range.To.Format("2006-01-02"))
	fmt.Fprintf(w, "%-28s %-22s %8s %8s %10s %8s %8s\n",
		"Portfolio", "Manager", "Sharpe", "Beta", "CumRet", "Vol", "MaxDD")
	for _, p := range r.Portfolios {
		fmt.Fprintf(w, "%-28s %-22s %8s %8s %9s%% %8s %7s%%\n",
			p.Portfolio, p.Manager,
			fmtMetric(p.Sharpe, 3), fmtMetric(p.Beta, 3),
			fmtMetric(p.CumulativeReturn*100, 2),
			fmtMetric(p.Volatility, 3),
			fmtMetric(p.MaxDrawdown*100, 2))
	}
	if r.BestManager != "" {
		fmt.Fprintf(w, "\nBest manager: %s (mean cumulative return %.2f%%)\n",
			r.BestManager, r.BestManagerReturn*100)
	}
}

// bestManager picks the manager with the highest mean final cumulative
// return across the portfolios they manage.
func bestManager(managerReturns map[string][]float64) (string, float64) {
	best := ""
	bestMean := math.Inf(-1)
	for name, rets := range managerReturns {
		total := 0.0
		for _, r := range rets {
			total += r
		}
		m := total / float64(len(rets))
		if m > bestMean || (m == bestMean && (best == "" || name < best)) {
			best, bestMean = name, m
		}
	}
	if best == "" {
		return "", math.NaN()
	}
	return best, bestMean
}

func (b *Builder) loadSeries(ctx context.Context, ticker string, dr persistence.DateRange) (analytics.Series, error) {
	if ticker == "" {
		return nil, nil
	}
	daily, err := b.repo.Returns.SeriesByTicker(ctx, ticker, dr)
	if err != nil {
		return nil, fmt.Errorf("benchmark %s: %w", ticker, err)
	}
	return toSeries(daily), nil
}

func toSeries(daily []persistence.DailyReturn) analytics.Series {
	s := make(analytics.Series, len(daily))
	for i, d := range daily {
		s[i] = analytics.Point{Date: d.Date, Return: d.Value}
	}
	return s
}

func fmtMetric(v float64, prec int) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.*f", prec, v)
}

// Package returns provides the date-indexed, ticker-keyed table of daily
// fractional returns that the strategy engine consumes, together with the
// trailing momentum and rolling volatility indicators computed on it.
package returns

import (
	"math"
	"sort"
	"time"

	"github.com/quantfund/portrun/internal/domain"
)

// Day normalizes a timestamp to a UTC calendar date. All table indices use
// this normalization so observations from different sources line up.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Table is a wide view over return observations: one row per date, one
// column per ticker. Missing cells are NaN. Rows are sorted ascending by
// date; column order preserves first appearance in the input, which keeps
// downstream tie-breaking deterministic.
type Table struct {
	dates   []time.Time
	tickers []string
	cols    map[string][]float64
}

// Pivot builds a Table from raw observations, de-duplicating on
// (date, ticker) and keeping the first occurrence.
func Pivot(obs []domain.ReturnObservation) *Table {
	type cell struct {
		date   time.Time
		ticker string
	}
	seen := make(map[cell]bool, len(obs))
	deduped := make([]domain.ReturnObservation, 0, len(obs))
	dateSet := make(map[time.Time]bool)
	var tickers []string
	tickerSet := make(map[string]bool)

	for _, o := range obs {
		d := Day(o.Date)
		c := cell{date: d, ticker: o.Ticker}
		if seen[c] {
			continue
		}
		seen[c] = true
		o.Date = d
		deduped = append(deduped, o)
		dateSet[d] = true
		if !tickerSet[o.Ticker] {
			tickerSet[o.Ticker] = true
			tickers = append(tickers, o.Ticker)
		}
	}

	dates := make([]time.Time, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	rowIndex := make(map[time.Time]int, len(dates))
	for i, d := range dates {
		rowIndex[d] = i
	}

	cols := make(map[string][]float64, len(tickers))
	for _, tk := range tickers {
		col := make([]float64, len(dates))
		for i := range col {
			col[i] = math.NaN()
		}
		cols[tk] = col
	}
	for _, o := range deduped {
		cols[o.Ticker][rowIndex[o.Date]] = o.Value
	}

	return &Table{dates: dates, tickers: tickers, cols: cols}
}

// Len returns the number of rows (dates).
func (t *Table) Len() int { return len(t.dates) }

// Tickers returns the column order.
func (t *Table) Tickers() []string { return t.tickers }

// Dates returns the row index, ascending.
func (t *Table) Dates() []time.Time { return t.dates }

// Column returns the values for a ticker aligned with Dates, or nil if the
// ticker is not present.
func (t *Table) Column(ticker string) []float64 { return t.cols[ticker] }

// Has reports whether the ticker has a column in the table.
func (t *Table) Has(ticker string) bool {
	_, ok := t.cols[ticker]
	return ok
}

// Truncate returns a view containing only rows with date <= cutoff.
func (t *Table) Truncate(cutoff time.Time) *Table {
	cutoff = Day(cutoff)
	n := sort.Search(len(t.dates), func(i int) bool { return t.dates[i].After(cutoff) })
	out := &Table{
		dates:   t.dates[:n],
		tickers: t.tickers,
		cols:    make(map[string][]float64, len(t.tickers)),
	}
	for _, tk := range t.tickers {
		out.cols[tk] = t.cols[tk][:n]
	}
	return out
}

// Select returns a view restricted to the requested tickers, in the
// requested order, silently dropping tickers the table does not have.
func (t *Table) Select(tickers []string) *Table {
	out := &Table{dates: t.dates, cols: make(map[string][]float64)}
	for _, tk := range tickers {
		col, ok := t.cols[tk]
		if !ok {
			continue
		}
		out.tickers = append(out.tickers, tk)
		out.cols[tk] = col
	}
	return out
}

// Momentum computes the fractional change of a ticker's series over the
// trailing window, evaluated at the last row: (v[n-1] - v[n-1-w]) / v[n-1-w].
// Returns NaN when the series is too short; division artifacts (zero or NaN
// base) propagate as non-finite values, which callers treat as "omit", not
// as errors.
func (t *Table) Momentum(ticker string, window int) float64 {
	col, ok := t.cols[ticker]
	if !ok || window <= 0 || len(col) <= window {
		return math.NaN()
	}
	last := col[len(col)-1]
	base := col[len(col)-1-window]
	return (last - base) / base
}

// RollingVol computes the annualized volatility of the trailing window at
// the last row: sample standard deviation scaled by sqrt(252). Returns NaN
// when fewer than window observations are available or the window contains
// a missing value.
func (t *Table) RollingVol(ticker string, window int, tradingDays int) float64 {
	col, ok := t.cols[ticker]
	if !ok || window < 2 || len(col) < window {
		return math.NaN()
	}
	tail := col[len(col)-window:]
	mean := 0.0
	for _, v := range tail {
		if math.IsNaN(v) {
			return math.NaN()
		}
		mean += v
	}
	mean /= float64(window)
	variance := 0.0
	for _, v := range tail {
		d := v - mean
		variance += d * d
	}
	variance /= float64(window - 1)
	return math.Sqrt(variance) * math.Sqrt(float64(tradingDays))
}

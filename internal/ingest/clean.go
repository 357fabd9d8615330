package ingest

import (
	"math"
	"time"

	"github.com/quantfund/portrun/internal/returns"
)

// ExtremeReturnThreshold marks single-day moves that are almost certainly
// split or data artifacts rather than market moves.
const ExtremeReturnThreshold = 0.50

// DailyReturn is one cleaned daily fractional return for a ticker.
type DailyReturn struct {
	Date  time.Time
	Value float64
}

// ReturnsFromCloses converts a close series into cleaned daily fractional
// returns. The first observation has no prior close and is dropped.
// Divide-by-zero artifacts become 0, moves beyond the threshold are
// replaced by the previous cleaned return, and leading extremes with no
// prior value to carry forward are dropped.
func ReturnsFromCloses(closes []Close, threshold float64) []DailyReturn {
	if len(closes) < 2 {
		return nil
	}

	out := make([]DailyReturn, 0, len(closes)-1)
	prev := math.NaN()
	for i := 1; i < len(closes); i++ {
		r := (closes[i].Price - closes[i-1].Price) / closes[i-1].Price
		if math.IsInf(r, 0) {
			r = 0
		}
		if math.Abs(r) > threshold {
			if math.IsNaN(prev) {
				continue
			}
			r = prev
		}
		if math.IsNaN(r) {
			continue
		}
		prev = r
		out = append(out, DailyReturn{Date: returns.Day(closes[i].Date), Value: r})
	}
	return out
}

// Dedupe keeps the first observation per date, preserving order.
func Dedupe(rets []DailyReturn) []DailyReturn {
	seen := make(map[time.Time]bool, len(rets))
	out := rets[:0]
	for _, r := range rets {
		if seen[r.Date] {
			continue
		}
		seen[r.Date] = true
		out = append(out, r)
	}
	return out
}

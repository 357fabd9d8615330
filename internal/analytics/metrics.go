// Package analytics provides the performance metric calculations: Sharpe
// ratio, annualized volatility, cumulative return, max drawdown, and beta
// against a benchmark. All functions are pure and side-effect free. An
// undefined result (empty input, zero variance, empty join) is reported as
// NaN, never as a panic or an error: callers test with math.IsNaN.
package analytics

import (
	"math"
	"time"
)

// Defaults for metric computation.
const (
	DefaultTradingDays  = 252
	DefaultRiskFreeRate = 0.02 // annual
)

// Point is one dated return observation.
type Point struct {
	Date   time.Time
	Return float64
}

// Series is a date-sorted daily return series.
type Series []Point

// Returns extracts the raw return column.
func (s Series) Returns() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Return
	}
	return out
}

// CumulativeReturns computes cum[t] = prod(1+r[0..t]) - 1. The result is
// empty for empty input.
func CumulativeReturns(returns []float64) []float64 {
	out := make([]float64, len(returns))
	acc := 1.0
	for i, r := range returns {
		acc *= 1 + r
		out[i] = acc - 1
	}
	return out
}

// FinalCumulativeReturn returns the last cumulative return of the series,
// or NaN for empty input.
func FinalCumulativeReturn(returns []float64) float64 {
	if len(returns) == 0 {
		return math.NaN()
	}
	cum := CumulativeReturns(returns)
	return cum[len(cum)-1]
}

// SharpeRatio computes the annualized Sharpe ratio from daily returns and
// an annual risk-free rate. Undefined (NaN) for an empty series or when the
// excess-return standard deviation is zero.
func SharpeRatio(returns []float64, annualRiskFree float64, tradingDays int) float64 {
	if len(returns) == 0 {
		return math.NaN()
	}
	dailyRF := annualRiskFree / float64(tradingDays)
	excess := make([]float64, len(returns))
	for i, r := range returns {
		excess[i] = r - dailyRF
	}
	std := sampleStd(excess)
	if std == 0 || math.IsNaN(std) {
		return math.NaN()
	}
	return mean(excess) / std * math.Sqrt(float64(tradingDays))
}

// Volatility computes the annualized volatility: sample standard deviation
// of daily returns scaled by sqrt(tradingDays). NaN for fewer than two
// observations.
func Volatility(returns []float64, tradingDays int) float64 {
	if len(returns) == 0 {
		return math.NaN()
	}
	return sampleStd(returns) * math.Sqrt(float64(tradingDays))
}

// MaxDrawdown reconstructs portfolio value as 1+cum and reports the largest
// fractional decline from the running peak. NaN for empty input; zero for a
// series that never falls below its peak.
func MaxDrawdown(cumReturns []float64) float64 {
	if len(cumReturns) == 0 {
		return math.NaN()
	}
	maxDD := 0.0
	runningMax := math.Inf(-1)
	for _, cum := range cumReturns {
		value := 1 + cum
		if value > runningMax {
			runningMax = value
		}
		if dd := (runningMax - value) / runningMax; dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// Beta computes covariance(portfolio, benchmark) / variance(benchmark) over
// the inner join of the two series on date. NaN when either series or the
// join is empty, or when the benchmark variance is zero. The covariance is
// the sample covariance and the variance the population variance, matching
// the reference report figures.
func Beta(portfolio, benchmark Series) float64 {
	if len(portfolio) == 0 || len(benchmark) == 0 {
		return math.NaN()
	}

	benchByDate := make(map[time.Time]float64, len(benchmark))
	for _, p := range benchmark {
		benchByDate[day(p.Date)] = p.Return
	}

	var port, bench []float64
	for _, p := range portfolio {
		if b, ok := benchByDate[day(p.Date)]; ok {
			port = append(port, p.Return)
			bench = append(bench, b)
		}
	}
	if len(port) < 2 {
		return math.NaN()
	}

	portMean := mean(port)
	benchMean := mean(bench)
	cov := 0.0
	variance := 0.0
	for i := range port {
		cov += (port[i] - portMean) * (bench[i] - benchMean)
		variance += (bench[i] - benchMean) * (bench[i] - benchMean)
	}
	cov /= float64(len(port) - 1)
	variance /= float64(len(bench))
	if variance == 0 {
		return math.NaN()
	}
	return cov / variance
}

func mean(values []float64) float64 {
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total / float64(len(values))
}

// sampleStd is the n-1 standard deviation; NaN for fewer than two values.
func sampleStd(values []float64) float64 {
	if len(values) < 2 {
		return math.NaN()
	}
	m := mean(values)
	variance := 0.0
	for _, v := range values {
		d := v - m
		variance += d * d
	}
	variance /= float64(len(values) - 1)
	return math.Sqrt(variance)
}

func day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

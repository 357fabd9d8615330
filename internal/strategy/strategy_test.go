package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfund/portrun/internal/domain"
	"github.com/quantfund/portrun/internal/returns"
)

// seriesTable builds a table where each ticker's column is an explicit
// value series over consecutive days.
func seriesTable(t *testing.T, series map[string][]float64, order []string) *returns.Table {
	t.Helper()
	var obs []domain.ReturnObservation
	n := 0
	for _, vals := range series {
		if len(vals) > n {
			n = len(vals)
		}
	}
	for i := 0; i < n; i++ {
		for _, tk := range order {
			vals := series[tk]
			if i >= len(vals) {
				continue
			}
			obs = append(obs, domain.ReturnObservation{
				Ticker: tk,
				Date:   time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i),
				Value:  vals[i],
			})
		}
	}
	return returns.Pivot(obs)
}

// momSeries produces a series whose momentum over window 1 is exactly m:
// base value 1.0 followed by 1.0+m.
func momSeries(m float64) []float64 {
	return []float64{1.0, 1.0 + m}
}

func testParams() Params {
	p := DefaultParams()
	p.MomentumWindow = 1
	p.EquityMomentumWindow = 1
	p.VolatilityWindow = 2
	return p
}

func TestDecideEmptyTable(t *testing.T) {
	out, err := Decide(domain.LowRisk, returns.Pivot(nil), DefaultParams())
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestDecideUnknownProfile(t *testing.T) {
	tbl := seriesTable(t, map[string][]float64{"AAA": momSeries(0.5)}, []string{"AAA"})
	_, err := Decide(domain.RiskProfile("aggressive"), tbl, testParams())
	assert.Error(t, err)
}

func TestLowTurnoverKeepsTopTwoByMagnitude(t *testing.T) {
	tbl := seriesTable(t, map[string][]float64{
		"A": momSeries(0.75),   // qty 7
		"B": momSeries(-0.25),  // qty -2
		"C": momSeries(0.9375), // qty 9
		"D": momSeries(0.125),  // qty 1
	}, []string{"A", "B", "C", "D"})

	out, err := Decide(domain.LowTurnover, tbl, testParams())
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, Decision{Ticker: "C", Qty: 9}, out[0])
	assert.Equal(t, Decision{Ticker: "A", Qty: 7}, out[1])
}

func TestLowTurnoverStableTieBreak(t *testing.T) {
	tbl := seriesTable(t, map[string][]float64{
		"A": momSeries(0.5),
		"B": momSeries(-0.5),
		"C": momSeries(0.5),
	}, []string{"A", "B", "C"})

	out, err := Decide(domain.LowTurnover, tbl, testParams())
	require.NoError(t, err)
	require.Len(t, out, 2)
	// equal magnitudes keep column order
	assert.Equal(t, "A", out[0].Ticker)
	assert.Equal(t, "B", out[1].Ticker)
}

func TestLowRiskContrarianAboveVolTarget(t *testing.T) {
	// two large swings give an annualized vol far above 0.10
	tbl := seriesTable(t, map[string][]float64{
		"A": {1.0, 1.5},
	}, []string{"A"})

	out, err := Decide(domain.LowRisk, tbl, testParams())
	require.NoError(t, err)
	require.Len(t, out, 1)
	// momentum 0.5 gives qty 5, negated by the vol breach
	assert.Equal(t, int64(-5), out[0].Qty)
}

func TestLowRiskFollowsMomentumUnderVolTarget(t *testing.T) {
	p := testParams()
	p.VolatilityTarget = 100 // everything passes
	tbl := seriesTable(t, map[string][]float64{
		"A": {1.0, 1.5},
	}, []string{"A"})

	out, err := Decide(domain.LowRisk, tbl, p)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, int64(5), out[0].Qty)
}

func TestLowRiskMissingVolHistoryIsContrarian(t *testing.T) {
	p := testParams()
	p.VolatilityWindow = 10 // more history than the series has
	tbl := seriesTable(t, map[string][]float64{
		"A": {1.0, 1.25},
	}, []string{"A"})

	out, err := Decide(domain.LowRisk, tbl, p)
	require.NoError(t, err)
	require.Len(t, out, 1)
	// NaN volatility fails the threshold check, so momentum is inverted
	assert.Equal(t, int64(-2), out[0].Qty)
}

func TestHighYieldEquityScale(t *testing.T) {
	tbl := seriesTable(t, map[string][]float64{
		"AAPL": momSeries(0.9),  // 0.9 * 5 = 4.5, truncates to 4
		"TSLA": momSeries(-0.5), // -2.5 truncates toward zero to -2
	}, []string{"AAPL", "TSLA"})

	out, err := Decide(domain.HighYieldEquityOnly, tbl, testParams())
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, Decision{Ticker: "AAPL", Qty: 4}, out[0])
	assert.Equal(t, Decision{Ticker: "TSLA", Qty: -2}, out[1])
}

func TestNonFiniteMomentumOmitted(t *testing.T) {
	tbl := seriesTable(t, map[string][]float64{
		"A": {0.0, 0.5}, // zero base, infinite momentum
		"B": momSeries(0.3),
	}, []string{"A", "B"})

	out, err := Decide(domain.HighYieldEquityOnly, tbl, testParams())
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "B", out[0].Ticker)
}

func TestTruncQtyRoundsTowardZero(t *testing.T) {
	assert.Equal(t, int64(2), truncQty(2.9))
	assert.Equal(t, int64(-2), truncQty(-2.9))
	assert.Equal(t, int64(0), truncQty(0.99))
}

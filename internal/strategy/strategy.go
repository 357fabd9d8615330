// Package strategy implements the decision rules that map a risk profile
// and a windowed return series to signed target quantity deltas.
package strategy

import (
	"fmt"
	"math"
	"sort"

	"github.com/quantfund/portrun/internal/domain"
	"github.com/quantfund/portrun/internal/returns"
)

// Decision is one signed target quantity delta for one instrument.
// Decisions are carried as an ordered slice (column order of the input
// table) so execution processes them deterministically.
type Decision struct {
	Ticker string
	Qty    int64
}

// Params holds the tunable inputs of the three strategies.
type Params struct {
	VolatilityTarget     float64 `yaml:"volatility_target"`      // low_risk vol threshold
	VolatilityWindow     int     `yaml:"volatility_window"`      // rolling vol window, observations
	MomentumWindow       int     `yaml:"momentum_window"`        // low_risk / low_turnover momentum window
	EquityMomentumWindow int     `yaml:"equity_momentum_window"` // high_yield_equity_only momentum window
	MaxPositions         int     `yaml:"max_positions"`          // low_turnover decision-stage cap
	TradingDays          int     `yaml:"trading_days"`           // annualization factor
}

// DefaultParams returns the production defaults.
func DefaultParams() Params {
	return Params{
		VolatilityTarget:     0.10,
		VolatilityWindow:     30,
		MomentumWindow:       30,
		EquityMomentumWindow: 10,
		MaxPositions:         2,
		TradingDays:          252,
	}
}

// Decide dispatches to the rule for the given risk profile. The table must
// already be restricted to the portfolio's authorized instruments and to
// dates at or before the evaluation date. An empty table yields an empty
// decision set. An unknown profile is an error: the profile set is closed
// and an unhandled value means corrupt portfolio data.
func Decide(profile domain.RiskProfile, tbl *returns.Table, p Params) ([]Decision, error) {
	if tbl.Len() == 0 {
		return nil, nil
	}
	switch profile {
	case domain.LowRisk:
		return lowRisk(tbl, p), nil
	case domain.LowTurnover:
		return lowTurnover(tbl, p), nil
	case domain.HighYieldEquityOnly:
		return highYieldEquity(tbl, p), nil
	}
	return nil, fmt.Errorf("unknown risk profile: %q", profile)
}

// lowRisk follows momentum on instruments whose trailing annualized
// volatility is at or under the target, and trades against momentum on the
// rest. Instruments with non-finite momentum are omitted. A NaN volatility
// fails the threshold comparison and therefore lands in the contrarian
// branch, matching the de-risking intent for names without enough history.
func lowRisk(tbl *returns.Table, p Params) []Decision {
	var out []Decision
	for _, tk := range tbl.Tickers() {
		m := tbl.Momentum(tk, p.MomentumWindow)
		if !isFinite(m) {
			continue
		}
		qty := truncQty(m * 10)
		if vol := tbl.RollingVol(tk, p.VolatilityWindow, p.TradingDays); !(vol <= p.VolatilityTarget) {
			qty = -qty
		}
		out = append(out, Decision{Ticker: tk, Qty: qty})
	}
	return out
}

// lowTurnover scores every instrument by momentum, then keeps at most
// MaxPositions decisions by descending absolute magnitude. The sort is
// stable, so ties resolve by input column order. This decision-stage cap is
// layered with the execution-stage monthly frequency cap: a decision that
// survives ranking can still be dropped at execution time.
func lowTurnover(tbl *returns.Table, p Params) []Decision {
	var out []Decision
	for _, tk := range tbl.Tickers() {
		m := tbl.Momentum(tk, p.MomentumWindow)
		if !isFinite(m) {
			continue
		}
		out = append(out, Decision{Ticker: tk, Qty: truncQty(m * 10)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return abs64(out[i].Qty) > abs64(out[j].Qty)
	})
	if len(out) > p.MaxPositions {
		out = out[:p.MaxPositions]
	}
	return out
}

// highYieldEquity uses a shorter momentum window and a smaller scale, with
// no position-count limit at this stage.
func highYieldEquity(tbl *returns.Table, p Params) []Decision {
	var out []Decision
	for _, tk := range tbl.Tickers() {
		m := tbl.Momentum(tk, p.EquityMomentumWindow)
		if !isFinite(m) {
			continue
		}
		out = append(out, Decision{Ticker: tk, Qty: truncQty(m * 5)})
	}
	return out
}

// truncQty rounds toward zero.
func truncQty(v float64) int64 {
	return int64(math.Trunc(v))
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

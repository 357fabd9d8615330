package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRiskProfile(t *testing.T) {
	for _, s := range []string{"low_risk", "low_turnover", "high_yield_equity_only"} {
		p, err := ParseRiskProfile(s)
		require.NoError(t, err)
		assert.True(t, p.Valid())
	}

	_, err := ParseRiskProfile("balanced")
	assert.Error(t, err)
	assert.False(t, RiskProfile("LOW_RISK").Valid())
	assert.False(t, RiskProfile("").Valid())
}

func TestTradeSide(t *testing.T) {
	assert.Equal(t, "buy", Trade{Qty: 3}.Side())
	assert.Equal(t, "sell", Trade{Qty: -3}.Side())
	assert.Equal(t, "flat", Trade{Qty: 0}.Side())
}

package metrics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stratlab/internal/domain"
)

func trades(profits ...float64) []domain.TradeRecord {
	out := make([]domain.TradeRecord, len(profits))
	for i, p := range profits {
		out[i] = domain.TradeRecord{Profit: p}
	}
	return out
}

func TestComputeMixedLedger(t *testing.T) {
	s := Compute(trades(10, -5, 20, -5, -5), 1000)

	assert.Equal(t, 5, s.TotalTrades)
	assert.Equal(t, 2, s.Wins)
	assert.Equal(t, 3, s.Losses)
	assert.InDelta(t, 0.4, s.WinRate, 1e-12)
	assert.InDelta(t, 15.0, s.TotalPnL, 1e-12)
	assert.InDelta(t, 3.0, s.AvgPnL, 1e-12)
	assert.InDelta(t, 30.0, s.GrossProfit, 1e-12)
	assert.InDelta(t, 15.0, s.GrossLoss, 1e-12)
	assert.InDelta(t, 15.0, s.AvgWin, 1e-12)
	assert.InDelta(t, -5.0, s.AvgLoss, 1e-12)
	assert.InDelta(t, 2.0, s.ProfitFactor, 1e-12)
	assert.Equal(t, 1, s.MaxConsecutiveWins)
	assert.Equal(t, 2, s.MaxConsecutiveLosses)
	assert.Equal(t, []float64{1000, 1010, 1005, 1025, 1020, 1015}, s.EquityCurve)
	assert.InDelta(t, (1025.0-1015.0)/1025.0, s.MaxDrawdown, 1e-12)
	assert.InDelta(t, 1015.0, s.FinalEquity, 1e-12)
	assert.InDelta(t, 0.015, s.TotalReturn, 1e-12)

	// mean 3, sample variance (49+64+289+64+64)/4 = 132.5
	assert.InDelta(t, 3/math.Sqrt(132.5), s.Sharpe, 1e-12)
}

func TestComputeEmptyLedger(t *testing.T) {
	s := Compute(nil, 1000)

	assert.Equal(t, 0, s.TotalTrades)
	assert.Equal(t, 0.0, s.WinRate)
	assert.Equal(t, 0.0, s.ProfitFactor)
	assert.True(t, math.IsNaN(s.Sharpe))
	assert.Equal(t, []float64{1000}, s.EquityCurve)
	assert.Equal(t, 0.0, s.MaxDrawdown)
	assert.Equal(t, 1000.0, s.FinalEquity)
}

func TestComputeAllWins(t *testing.T) {
	s := Compute(trades(5, 5, 5), 100)

	assert.True(t, math.IsInf(s.ProfitFactor, 1))
	assert.True(t, math.IsNaN(s.Sharpe), "zero variance")
	assert.Equal(t, 3, s.MaxConsecutiveWins)
	assert.Equal(t, 0.0, s.MaxDrawdown)
}

func TestComputeZeroProfitIsLoss(t *testing.T) {
	s := Compute(trades(0, 0), 100)

	assert.Equal(t, 2, s.Losses)
	assert.Equal(t, 2, s.MaxConsecutiveLosses)
	assert.Equal(t, 0.0, s.ProfitFactor)
}

func TestComputeSingleTradeSharpeIsNaN(t *testing.T) {
	s := Compute(trades(42), 100)
	assert.True(t, math.IsNaN(s.Sharpe))
	assert.Equal(t, 1.0, s.WinRate)
}

func TestDrawdownClamped(t *testing.T) {
	s := Compute(trades(-600, -600), 1000)
	require.Len(t, s.EquityCurve, 3)
	assert.Equal(t, 1.0, s.MaxDrawdown, "losses beyond the peak clamp to 1")

	s = Compute(trades(-10), 0)
	assert.Equal(t, 0.0, s.MaxDrawdown)
	assert.Equal(t, 0.0, s.TotalReturn)
}

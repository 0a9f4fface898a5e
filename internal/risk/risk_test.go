package risk

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stratlab/internal/domain"
)

func makeBars(n int, start, step float64) []domain.Bar {
	bars := make([]domain.Bar, n)
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range bars {
		c := start + float64(i)*step
		bars[i] = domain.Bar{
			Symbol:    "TEST",
			Timestamp: t0.Add(time.Duration(i) * time.Hour),
			Open:      c,
			High:      c + 1,
			Low:       c - 1,
			Close:     c,
		}
	}
	return bars
}

func testParams() Params {
	return Params{
		RiskFraction: 0.01,
		DefaultSize:  1,
		Instrument: domain.Instrument{
			Symbol:         "TEST",
			PricePrecision: 2,
			SizePrecision:  4,
		},
	}
}

// ---------------------------------------------------------------------------
// Stop-loss finders
// ---------------------------------------------------------------------------

func TestFixedPercentStop(t *testing.T) {
	f := NewFixedPercentStop(0.1)
	assert.InDelta(t, 90.0, f.StopLoss(domain.SideLong, 100, nil), 1e-9)
	assert.InDelta(t, 110.0, f.StopLoss(domain.SideShort, 100, nil), 1e-9)
	assert.Equal(t, "sl_fixed(pct=0.1)", f.ID())
}

func TestATRStop(t *testing.T) {
	f := NewATRStop(14, 2)
	bars := makeBars(40, 100, 0) // true range 2 every bar

	assert.InDelta(t, 96.0, f.StopLoss(domain.SideLong, 100, bars), 1e-9)
	assert.InDelta(t, 104.0, f.StopLoss(domain.SideShort, 100, bars), 1e-9)
	assert.Equal(t, "sl_atr(mult=2,period=14)", f.ID())
	assert.Equal(t, 15, f.Lookback())
}

func TestATRStopFallback(t *testing.T) {
	f := NewATRStop(14, 2)
	got := f.StopLoss(domain.SideLong, 100, makeBars(3, 100, 0))
	assert.InDelta(t, 98.0, got, 1e-9)
}

func TestSwingStop(t *testing.T) {
	f := NewSwingStop(5, 0.01)
	bars := makeBars(10, 100, 1) // lows 99..108

	// Lowest low of the last five bars is 104.
	assert.InDelta(t, 104*0.99, f.StopLoss(domain.SideLong, 109, bars), 1e-9)
	// Highest high of the last five bars is 110.
	assert.InDelta(t, 110*1.01, f.StopLoss(domain.SideShort, 109, bars), 1e-9)
}

func TestSwingStopWrongSideFallsBack(t *testing.T) {
	f := NewSwingStop(5, 0)
	bars := makeBars(10, 100, 1)

	// Entry below every recent low: the swing is unusable for a long.
	got := f.StopLoss(domain.SideLong, 50, bars)
	assert.InDelta(t, 50*(1-minSwingFallback), got, 1e-9)
	assert.Less(t, got, 50.0)
}

func TestTrailingStopStepsAreBounded(t *testing.T) {
	f := NewTrailingStop(NewFixedPercentStop(0.05), 0.05, 0.01, 2)
	stop := f.StopLoss(domain.SideLong, 100, nil)
	require.InDelta(t, 95.0, stop, 1e-9)

	bar := domain.Bar{Open: 110, High: 120, Low: 109, Close: 118}
	got := f.Trail(domain.SideLong, stop, bar)
	// Two increments of 1% of close, well short of the 114 trailing level.
	assert.InDelta(t, 95+2*1.18, got, 1e-9)
}

func TestTrailingStopNeverLoosens(t *testing.T) {
	f := NewTrailingStop(NewFixedPercentStop(0.05), 0.05, 0, 0)
	assert.Equal(t, DefaultMaxIterations, f.MaxIterations)

	bar := domain.Bar{Open: 91, High: 92, Low: 88, Close: 89}
	assert.InDelta(t, 95.0, f.Trail(domain.SideLong, 95, bar), 1e-9)

	bar = domain.Bar{Open: 110, High: 111, Low: 108, Close: 110}
	assert.InDelta(t, 105.0, f.Trail(domain.SideShort, 105, bar), 1e-9)
}

func TestTrailingStopJumpsWithoutStep(t *testing.T) {
	f := NewTrailingStop(NewFixedPercentStop(0.05), 0.05, 0, 0)

	long := f.Trail(domain.SideLong, 95, domain.Bar{High: 120, Low: 110, Close: 118})
	assert.InDelta(t, 114.0, long, 1e-9)

	short := f.Trail(domain.SideShort, 105, domain.Bar{High: 85, Low: 80, Close: 82})
	assert.InDelta(t, 84.0, short, 1e-9)

	assert.Equal(t, "sl_trail(base=sl_fixed(pct=0.05),pct=0.05,step=0,max=100)", f.ID())
}

// ---------------------------------------------------------------------------
// Take-profit finders
// ---------------------------------------------------------------------------

func TestRiskRewardTarget(t *testing.T) {
	f := NewRiskRewardTarget(2)
	assert.InDelta(t, 120.0, f.TakeProfit(domain.SideLong, 100, 90), 1e-9)
	assert.InDelta(t, 80.0, f.TakeProfit(domain.SideShort, 100, 110), 1e-9)
	assert.True(t, math.IsInf(f.TakeProfit(domain.SideLong, 100, 100), 1))
	assert.Equal(t, "tp_rr(ratio=2)", f.ID())
}

func TestFixedPercentTargetAndNone(t *testing.T) {
	f := NewFixedPercentTarget(0.1)
	assert.InDelta(t, 110.0, f.TakeProfit(domain.SideLong, 100, 0), 1e-9)
	assert.InDelta(t, 90.0, f.TakeProfit(domain.SideShort, 100, 0), 1e-9)

	assert.True(t, math.IsInf(NoTarget{}.TakeProfit(domain.SideLong, 100, 90), 1))
	assert.True(t, math.IsInf(NoTarget{}.TakeProfit(domain.SideShort, 100, 110), -1))
	assert.Equal(t, "tp_none", NoTarget{}.ID())
}

// ---------------------------------------------------------------------------
// Manager
// ---------------------------------------------------------------------------

func TestManagerPrices(t *testing.T) {
	m := NewManager(NewFixedPercentStop(0.1), NewRiskRewardTarget(3), testParams(), nil)

	stop, target := m.Prices(domain.SideLong, 100, nil)
	assert.InDelta(t, 90.0, stop, 1e-9)
	assert.InDelta(t, 130.0, target, 1e-9)

	stop, target = m.Prices(domain.SideShort, 100, nil)
	assert.InDelta(t, 110.0, stop, 1e-9)
	assert.InDelta(t, 70.0, target, 1e-9)
}

func TestManagerPricesRoundsToPrecision(t *testing.T) {
	m := NewManager(NewFixedPercentStop(0.0333), NoTarget{}, testParams(), nil)
	stop, target := m.Prices(domain.SideLong, 100, nil)
	assert.InDelta(t, 96.67, stop, 1e-9)
	assert.True(t, math.IsInf(target, 1))
}

func TestPositionSize(t *testing.T) {
	m := NewManager(NewFixedPercentStop(0.1), NoTarget{}, testParams(), nil)
	// 1% of 10000 over a 10 point stop.
	assert.InDelta(t, 10.0, m.PositionSize(10000, 100, 90), 1e-9)

	p := testParams()
	p.Instrument.TradingFee = 0.001
	m = NewManager(NewFixedPercentStop(0.1), NoTarget{}, p, nil)
	assert.InDelta(t, 9.99, m.PositionSize(10000, 100, 90), 1e-9)
}

func TestPositionSizeMinimumAndDefault(t *testing.T) {
	p := testParams()
	p.Instrument.MinSize = 20
	p.DefaultSize = 3
	m := NewManager(NewFixedPercentStop(0.1), NoTarget{}, p, nil)

	assert.InDelta(t, 20.0, m.PositionSize(10000, 100, 90), 1e-9, "floored at min size")
	assert.InDelta(t, 3.0, m.PositionSize(10000, 100, 100), 1e-9, "zero distance uses default")
	assert.InDelta(t, 0.0, m.PositionSize(0, 100, 90), 1e-9, "no account, no position")
}

func TestShouldExitStopLossExample(t *testing.T) {
	m := NewManager(NewFixedPercentStop(0.1), NewRiskRewardTarget(3), testParams(), nil)
	bar := domain.Bar{Open: 92, High: 95, Low: 85, Close: 88}

	require.True(t, m.ShouldExit(domain.SideLong, 90, 130, bar))

	reason, raw, ok := ExitReason(domain.SideLong, 90, 130, bar)
	require.True(t, ok)
	assert.Equal(t, domain.ExitStopLoss, reason)
	assert.InDelta(t, 85.0, raw, 1e-9)

	exit := ClampExit(90, 130, raw)
	assert.InDelta(t, 90.0, exit, 1e-9)

	size := m.PositionSize(10000, 100, 90)
	assert.Less(t, (exit-100)*size, 0.0)
}

func TestExitReasonShortAndPriority(t *testing.T) {
	reason, raw, ok := ExitReason(domain.SideShort, 110, 80, domain.Bar{High: 111, Low: 100})
	require.True(t, ok)
	assert.Equal(t, domain.ExitStopLoss, reason)
	assert.InDelta(t, 111.0, raw, 1e-9)

	reason, _, ok = ExitReason(domain.SideShort, 110, 80, domain.Bar{High: 100, Low: 79})
	require.True(t, ok)
	assert.Equal(t, domain.ExitTakeProfit, reason)

	// A bar spanning both levels exits at the stop.
	reason, _, ok = ExitReason(domain.SideLong, 90, 110, domain.Bar{High: 115, Low: 85})
	require.True(t, ok)
	assert.Equal(t, domain.ExitStopLoss, reason)

	_, _, ok = ExitReason(domain.SideLong, 90, 110, domain.Bar{High: 105, Low: 95})
	assert.False(t, ok)
}

func TestClampExit(t *testing.T) {
	assert.InDelta(t, 130.0, ClampExit(90, 130, 140), 1e-9)
	assert.InDelta(t, 100.0, ClampExit(90, 130, 100), 1e-9)
	// Short: target below stop.
	assert.InDelta(t, 80.0, ClampExit(110, 80, 70), 1e-9)
	assert.InDelta(t, 1e6, ClampExit(90, math.Inf(1), 1e6), 1e-9)
}

func TestManagerTrailDelegates(t *testing.T) {
	fixed := NewManager(NewFixedPercentStop(0.05), NoTarget{}, testParams(), nil)
	bar := domain.Bar{High: 120, Low: 110, Close: 118}
	assert.InDelta(t, 95.0, fixed.Trail(domain.SideLong, 95, bar), 1e-9)

	trailing := NewManager(NewTrailingStop(NewFixedPercentStop(0.05), 0.05, 0, 0), NoTarget{}, testParams(), nil)
	assert.InDelta(t, 114.0, trailing.Trail(domain.SideLong, 95, bar), 1e-9)
}

// ---------------------------------------------------------------------------
// Factories
// ---------------------------------------------------------------------------

func TestStopLossFromConfig(t *testing.T) {
	f, err := StopLossFromConfig(domain.FinderConfig{Type: "atr", Params: map[string]float64{"period": 14, "multiplier": 1.5}})
	require.NoError(t, err)
	assert.Equal(t, "sl_atr(mult=1.5,period=14)", f.ID())

	f, err = StopLossFromConfig(domain.FinderConfig{Type: "trailing", Params: map[string]float64{"trail_pct": 0.03, "atr_period": 10}})
	require.NoError(t, err)
	assert.Equal(t, "sl_trail(base=sl_atr(mult=2,period=10),pct=0.03,step=0,max=100)", f.ID())

	_, err = StopLossFromConfig(domain.FinderConfig{Type: "fixed"})
	assert.True(t, errors.Is(err, ErrMissingParam))

	_, err = StopLossFromConfig(domain.FinderConfig{Type: "fixed", Params: map[string]float64{"pct": -1}})
	assert.True(t, errors.Is(err, ErrInvalidParam))

	_, err = StopLossFromConfig(domain.FinderConfig{Type: "trailing", Params: map[string]float64{"trail_pct": 0.03, "base_pct": 0}})
	assert.True(t, errors.Is(err, ErrInvalidParam), "zero base_pct")

	_, err = StopLossFromConfig(domain.FinderConfig{Type: "trailing", Params: map[string]float64{"trail_pct": 0.03, "atr_period": 10, "atr_multiplier": 0}})
	assert.True(t, errors.Is(err, ErrInvalidParam), "zero atr_multiplier")

	f, err = StopLossFromConfig(domain.FinderConfig{Type: "trailing", Params: map[string]float64{"trail_pct": 0.03, "base_pct": 0.02}})
	require.NoError(t, err)
	assert.Contains(t, f.ID(), "sl_fixed")

	_, err = StopLossFromConfig(domain.FinderConfig{Type: "psychic"})
	assert.True(t, errors.Is(err, ErrUnknownFinderType))
}

func TestTakeProfitFromConfig(t *testing.T) {
	f, err := TakeProfitFromConfig(domain.FinderConfig{Type: "risk_reward", Params: map[string]float64{"ratio": 2}})
	require.NoError(t, err)
	assert.Equal(t, "tp_rr(ratio=2)", f.ID())

	f, err = TakeProfitFromConfig(domain.FinderConfig{Type: "none"})
	require.NoError(t, err)
	assert.Equal(t, "tp_none", f.ID())

	_, err = TakeProfitFromConfig(domain.FinderConfig{Type: "moon"})
	assert.True(t, errors.Is(err, ErrUnknownFinderType))
}

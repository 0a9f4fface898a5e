package engine

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stratlab/internal/domain"
	"stratlab/internal/risk"
	"stratlab/internal/strategy/builtins"
)

var t0 = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

// scripted emits fixed signals keyed by the index of the last prefix bar.
type scripted struct {
	entries map[int]domain.Signal
	exits   map[int]domain.Signal
	panics  bool
}

func (s *scripted) Name() string  { return "scripted" }
func (s *scripted) ID() string    { return "scripted" }
func (s *scripted) Lookback() int { return 1 }

func (s *scripted) Entry(bars []domain.Bar) domain.Signal {
	if s.panics {
		panic("boom")
	}
	return s.entries[len(bars)-1]
}

func (s *scripted) Exit(bars []domain.Bar) domain.Signal {
	return s.exits[len(bars)-1]
}

func bar(i int, o, h, l, c float64) domain.Bar {
	return domain.Bar{
		Symbol:    "TEST",
		Timestamp: t0.Add(time.Duration(i) * time.Minute),
		Open:      o, High: h, Low: l, Close: c,
		Volume: 100,
	}
}

func flat(i int, c float64) domain.Bar { return bar(i, c, c+1, c-1, c) }

func manager(tp float64) *risk.Manager {
	return risk.NewManager(
		risk.NewFixedPercentStop(0.10),
		risk.NewRiskRewardTarget(tp),
		risk.Params{
			RiskFraction: 0.01,
			DefaultSize:  1,
			Instrument:   domain.Instrument{Symbol: "TEST", PricePrecision: 2, SizePrecision: 4},
		},
		nil,
	)
}

func long() domain.Signal  { return domain.Signal{Long: true} }
func short() domain.Signal { return domain.Signal{Short: true} }

func run(t *testing.T, s *scripted, rm *risk.Manager, cfg Config, bars []domain.Bar) []domain.TradeRecord {
	t.Helper()
	return New(s, rm, cfg, nil).Run(bars).Trades()
}

func TestLongStopLossExit(t *testing.T) {
	bars := []domain.Bar{
		flat(0, 100),
		bar(1, 94, 95, 85, 88),
		flat(2, 88),
	}
	s := &scripted{entries: map[int]domain.Signal{0: long()}}

	trades := run(t, s, manager(3), Config{InitialCapital: 1000}, bars)
	require.Len(t, trades, 1)

	tr := trades[0]
	assert.Equal(t, domain.SideLong, tr.Side)
	assert.Equal(t, 100.0, tr.EntryPrice)
	assert.Equal(t, 90.0, tr.StopLoss)
	assert.Equal(t, 130.0, tr.TakeProfit)
	assert.Equal(t, 1.0, tr.Size)
	assert.Equal(t, 90.0, tr.ExitPrice)
	assert.Equal(t, domain.ExitStopLoss, tr.Reason)
	assert.InDelta(t, (90-100)*tr.Size, tr.Profit, 1e-9)
	assert.Equal(t, 1, tr.BarsHeld)
	assert.Equal(t, bars[1].Timestamp, tr.ExitTime)
}

func TestLongTakeProfitExit(t *testing.T) {
	bars := []domain.Bar{
		flat(0, 100),
		bar(1, 100, 140, 99, 120),
		flat(2, 120),
	}
	s := &scripted{entries: map[int]domain.Signal{0: long()}}

	trades := run(t, s, manager(3), Config{InitialCapital: 1000}, bars)
	require.Len(t, trades, 1)
	assert.Equal(t, domain.ExitTakeProfit, trades[0].Reason)
	assert.Equal(t, 130.0, trades[0].ExitPrice, "exit is clamped to the target")
	assert.InDelta(t, 30.0, trades[0].Profit, 1e-9)
}

func TestShortStopLossExit(t *testing.T) {
	bars := []domain.Bar{
		flat(0, 100),
		bar(1, 105, 112, 104, 108),
		flat(2, 108),
	}
	s := &scripted{entries: map[int]domain.Signal{0: short()}}

	trades := run(t, s, manager(3), Config{InitialCapital: 1000}, bars)
	require.Len(t, trades, 1)
	tr := trades[0]
	assert.Equal(t, domain.SideShort, tr.Side)
	assert.Equal(t, 110.0, tr.StopLoss)
	assert.Equal(t, 70.0, tr.TakeProfit)
	assert.Equal(t, 110.0, tr.ExitPrice)
	assert.InDelta(t, -10.0, tr.Profit, 1e-9)
}

func TestStopCheckedBeforeTarget(t *testing.T) {
	bars := []domain.Bar{
		flat(0, 100),
		bar(1, 100, 140, 80, 100),
		flat(2, 100),
	}
	s := &scripted{entries: map[int]domain.Signal{0: long()}}

	trades := run(t, s, manager(3), Config{InitialCapital: 1000}, bars)
	require.Len(t, trades, 1)
	assert.Equal(t, domain.ExitStopLoss, trades[0].Reason)
	assert.Equal(t, 90.0, trades[0].ExitPrice)
}

func TestSignalExitAtClose(t *testing.T) {
	bars := []domain.Bar{
		flat(0, 100),
		flat(1, 104),
		flat(2, 105),
	}
	s := &scripted{
		entries: map[int]domain.Signal{0: long()},
		exits:   map[int]domain.Signal{1: short(), 2: long()},
	}

	trades := run(t, s, manager(3), Config{InitialCapital: 1000}, bars)
	require.Len(t, trades, 1)
	assert.Equal(t, domain.ExitSignal, trades[0].Reason, "only the held side's exit counts")
	assert.Equal(t, 105.0, trades[0].ExitPrice)
	assert.Equal(t, 2, trades[0].BarsHeld)
}

func TestForcedCloseAtEndOfData(t *testing.T) {
	bars := []domain.Bar{flat(0, 100), flat(1, 102), flat(2, 110)}
	s := &scripted{entries: map[int]domain.Signal{0: long()}}

	trades := run(t, s, manager(3), Config{InitialCapital: 1000}, bars)
	require.Len(t, trades, 1)
	assert.Equal(t, domain.ExitEndOfData, trades[0].Reason)
	assert.Equal(t, 110.0, trades[0].ExitPrice)
	assert.Equal(t, bars[2].Timestamp, trades[0].ExitTime)
}

func TestNoReentryOnExitBar(t *testing.T) {
	bars := []domain.Bar{
		flat(0, 100),
		bar(1, 94, 95, 85, 88),
		flat(2, 88),
		flat(3, 89),
	}
	s := &scripted{entries: map[int]domain.Signal{0: long(), 1: long(), 2: short()}}

	trades := run(t, s, manager(3), Config{InitialCapital: 1000}, bars)
	require.Len(t, trades, 2)
	assert.Equal(t, domain.SideLong, trades[0].Side)
	assert.Equal(t, domain.SideShort, trades[1].Side)
	assert.Equal(t, bars[2].Timestamp, trades[1].EntryTime)
}

func TestSignalsWhileOpenAreIgnored(t *testing.T) {
	bars := []domain.Bar{flat(0, 100), flat(1, 101), flat(2, 102), flat(3, 103)}
	s := &scripted{entries: map[int]domain.Signal{0: long(), 1: short(), 2: long()}}

	trades := run(t, s, manager(3), Config{InitialCapital: 1000}, bars)
	require.Len(t, trades, 1)
	assert.Equal(t, bars[0].Timestamp, trades[0].EntryTime)
}

func TestAmbiguousAndFinalBarEntriesAreSkipped(t *testing.T) {
	bars := []domain.Bar{flat(0, 100), flat(1, 101), flat(2, 102)}
	s := &scripted{entries: map[int]domain.Signal{
		0: {Long: true, Short: true},
		2: long(),
	}}

	assert.Equal(t, []Candidate{{Index: 2, Side: domain.SideLong}}, Candidates(bars, s))
	assert.Empty(t, run(t, s, manager(3), Config{InitialCapital: 1000}, bars))
}

func TestZeroSizeSkipsEntry(t *testing.T) {
	bars := []domain.Bar{flat(0, 100), flat(1, 101), flat(2, 102)}
	s := &scripted{entries: map[int]domain.Signal{0: long()}}

	assert.Empty(t, run(t, s, manager(3), Config{InitialCapital: 0}, bars))
}

func TestPanickingStrategyYieldsNoTrades(t *testing.T) {
	bars := []domain.Bar{flat(0, 100), flat(1, 101), flat(2, 102)}
	s := &scripted{panics: true}

	assert.Empty(t, Candidates(bars, s))
	assert.Empty(t, run(t, s, manager(3), Config{InitialCapital: 1000}, bars))
}

func TestEmptyBars(t *testing.T) {
	s := &scripted{}
	assert.Equal(t, 0, New(s, manager(3), Config{InitialCapital: 1000}, nil).Run(nil).Len())
}

func TestCompoundSizing(t *testing.T) {
	bars := []domain.Bar{
		flat(0, 100),
		bar(1, 100, 115, 99, 100),
		flat(2, 100),
		flat(3, 100),
	}
	s := &scripted{entries: map[int]domain.Signal{0: long(), 2: long()}}

	simple := run(t, s, manager(1), Config{InitialCapital: 1000}, bars)
	require.Len(t, simple, 2)
	assert.InDelta(t, 10.0, simple[0].Profit, 1e-9)
	assert.Equal(t, 1.0, simple[1].Size)

	compound := run(t, s, manager(1), Config{InitialCapital: 1000, Compound: true}, bars)
	require.Len(t, compound, 2)
	assert.InDelta(t, 1.01, compound[1].Size, 1e-9)
}

func TestTrailingStopTightensWhileOpen(t *testing.T) {
	rm := risk.NewManager(
		risk.NewTrailingStop(risk.NewFixedPercentStop(0.10), 0.05, 0, risk.DefaultMaxIterations),
		risk.NoTarget{},
		risk.Params{RiskFraction: 0.01, DefaultSize: 1, Instrument: domain.Instrument{PricePrecision: 2, SizePrecision: 4}},
		nil,
	)
	bars := []domain.Bar{
		flat(0, 100),
		bar(1, 100, 120, 99, 119),
		bar(2, 119, 119, 110, 112),
		flat(3, 112),
	}
	s := &scripted{entries: map[int]domain.Signal{0: long()}}

	trades := run(t, s, rm, Config{InitialCapital: 1000}, bars)
	require.Len(t, trades, 1)
	assert.Equal(t, domain.ExitStopLoss, trades[0].Reason)
	assert.InDelta(t, 114.0, trades[0].ExitPrice, 1e-9, "stop trailed to 5% under the 120 high")
	assert.Greater(t, trades[0].Profit, 0.0)
}

func TestReplayInvariants(t *testing.T) {
	var bars []domain.Bar
	for i := 0; i < 400; i++ {
		c := 100 + 10*math.Sin(float64(i)/9) + 3*math.Sin(float64(i)/2.3)
		bars = append(bars, bar(i, c-0.2, c+1.5, c-1.5, c))
	}
	rm := risk.NewManager(
		risk.NewTrailingStop(risk.NewATRStop(14, 2), 0.03, 0.002, 10),
		risk.NewRiskRewardTarget(2),
		risk.Params{RiskFraction: 0.02, DefaultSize: 1, Instrument: domain.Instrument{PricePrecision: 2, SizePrecision: 4}},
		nil,
	)
	ledger := New(builtins.NewSMACross(3, 8), rm, Config{InitialCapital: 10000}, nil).Run(bars)
	trades := ledger.Trades()
	require.NotEmpty(t, trades)

	for i, tr := range trades {
		assert.True(t, tr.ExitTime.After(tr.EntryTime), "trade %d exits after entry", i)
		if i > 0 {
			assert.True(t, tr.EntryTime.After(trades[i-1].ExitTime), "trade %d opens after the previous close", i)
		}
		lo, hi := math.Min(tr.StopLoss, tr.TakeProfit), math.Max(tr.StopLoss, tr.TakeProfit)
		assert.GreaterOrEqual(t, tr.ExitPrice, lo, "trade %d", i)
		assert.LessOrEqual(t, tr.ExitPrice, hi, "trade %d", i)
	}
	assert.Len(t, ledger.Profits(), ledger.Len())
}

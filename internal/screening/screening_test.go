package screening

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stratlab/internal/backtest"
	"stratlab/internal/config"
	"stratlab/internal/domain"
	"stratlab/internal/gather"
	"stratlab/internal/metrics"
	"stratlab/internal/observability"
	"stratlab/internal/risk"
	"stratlab/internal/strategy"
	"stratlab/internal/strategy/builtins"
)

func testGrid() Grid {
	return Grid{
		Symbols:    []string{"AAPL", "MSFT"},
		Timeframes: []domain.Timeframe{domain.Timeframe1d, domain.Timeframe1h},
		Strategies: []strategy.Strategy{
			builtins.NewSMACross(3, 10),
			builtins.NewDonchianBreakout(10),
		},
		StopLosses: []risk.StopLossFinder{
			risk.NewFixedPercentStop(0.03),
			risk.NewATRStop(14, 2),
		},
		TakeProfits: []risk.TakeProfitFinder{
			risk.NewRiskRewardTarget(2),
		},
	}
}

func TestCombinationsCartesianProduct(t *testing.T) {
	combos := testGrid().Combinations()
	require.Len(t, combos, 2*2*2*2*1)
	assert.Equal(t, "AAPL|1d|sma_cross(fast=3,slow=10)|sl_fixed(pct=0.03)|tp_rr(ratio=2)", combos[0].Key())
	assert.Equal(t, "MSFT", combos[len(combos)-1].Symbol)
}

func TestCombinationsDeduplicate(t *testing.T) {
	g := testGrid()
	g.Symbols = append(g.Symbols, "AAPL")
	g.StopLosses = append(g.StopLosses, risk.NewFixedPercentStop(0.03))
	g.Strategies = append(g.Strategies, builtins.NewSMACross(3, 10))

	combos := g.Combinations()
	assert.Len(t, combos, 16)

	keys := make(map[string]bool)
	for _, c := range combos {
		assert.False(t, keys[c.Key()], "duplicate %s", c.Key())
		keys[c.Key()] = true
	}
}

func TestCombinationsDefaultTarget(t *testing.T) {
	g := testGrid()
	g.TakeProfits = nil
	combos := g.Combinations()
	require.Len(t, combos, 16)
	assert.Equal(t, "tp_none", combos[0].TakeProfit.ID())
}

func TestParseKey(t *testing.T) {
	c := testGrid().Combinations()[3]
	parts, err := ParseKey(c.Key())
	require.NoError(t, err)
	assert.Equal(t, c.Symbol, parts.Symbol)
	assert.Equal(t, c.Timeframe, parts.Timeframe)
	assert.Equal(t, c.Strategy.ID(), parts.Strategy)
	assert.Equal(t, c.StopLoss.ID(), parts.StopLoss)
	assert.Equal(t, c.TakeProfit.ID(), parts.TakeProfit)

	for _, bad := range []string{"", "AAPL|1d|s|sl", "AAPL|1d|s|sl|tp|x", "AAPL||s|sl|tp", "AAPL|2w|s|sl|tp"} {
		_, err := ParseKey(bad)
		assert.True(t, errors.Is(err, ErrMalformedKey), "key %q", bad)
	}
}

func result(key string, pnl, sharpe float64) *backtest.Result {
	return &backtest.Result{Key: key, Summary: metrics.Summary{TotalPnL: pnl, Sharpe: sharpe}}
}

func TestSort(t *testing.T) {
	results := []*backtest.Result{
		result("c", 10, math.NaN()),
		result("a", 30, 0.5),
		result("b", 10, 2),
		result("d", -5, 1),
	}

	Sort(results, MetricTotalPnL)
	assert.Equal(t, []string{"a", "b", "c", "d"}, keys(results), "ties broken by key")

	Sort(results, MetricSharpe)
	assert.Equal(t, []string{"b", "d", "a", "c"}, keys(results), "NaN ranks last")

	Sort(results, "bogus")
	assert.Equal(t, "a", results[0].Key)

	assert.Len(t, Top(results, 2), 2)
	assert.Len(t, Top(results, 0), 4)
	assert.Len(t, Top(results, 10), 4)
}

func keys(results []*backtest.Result) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Key
	}
	return out
}

func TestParseMetric(t *testing.T) {
	m, err := ParseMetric("")
	require.NoError(t, err)
	assert.Equal(t, MetricTotalPnL, m)

	m, err = ParseMetric("profit_factor")
	require.NoError(t, err)
	assert.Equal(t, MetricProfitFactor, m)

	_, err = ParseMetric("alpha")
	assert.Error(t, err)
	assert.Len(t, Metrics(), 7)
}

// seriesFetcher builds a deterministic wave per series and counts fetches.
type seriesFetcher struct {
	mu    sync.Mutex
	calls map[string]int
	fail  string
}

func (f *seriesFetcher) Fetch(_ context.Context, symbol string, tf domain.Timeframe, lookback int) ([]domain.Bar, error) {
	f.mu.Lock()
	f.calls[symbol+"|"+tf.String()]++
	f.mu.Unlock()
	if symbol == f.fail {
		return nil, gather.ErrFetchExhausted
	}

	phase := float64(len(symbol))
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]domain.Bar, 250)
	for i := range bars {
		c := 100 + 6*math.Sin(float64(i)/5+phase) + 2*math.Sin(float64(i)/1.7)
		bars[i] = domain.Bar{
			Symbol:    symbol,
			Timestamp: t0.Add(time.Duration(i) * tf.Duration()),
			Open:      c - 0.2, High: c + 0.8, Low: c - 0.8, Close: c,
		}
	}
	return gather.Normalize(bars, lookback), nil
}

func newHarness(f gather.Fetcher, workers int, m *observability.Metrics) *Harness {
	bt := backtest.NewBacktester(f, nil, backtest.Settings{InitialCapital: 10000, RiskFraction: 0.01, DefaultSize: 1}, m)
	return NewHarness(f, bt, Options{Workers: workers, Lookback: 200, Metrics: m})
}

func TestHarnessRun(t *testing.T) {
	f := &seriesFetcher{calls: make(map[string]int)}
	m := observability.NewMetrics()

	results, err := newHarness(f, 4, m).Run(context.Background(), testGrid())
	require.NoError(t, err)
	require.Len(t, results, 16)

	combos := testGrid().Combinations()
	for i, r := range results {
		require.NotNil(t, r)
		assert.Equal(t, combos[i].Key(), r.Key)
		assert.Equal(t, 200, r.Bars)
	}

	assert.Len(t, f.calls, 4)
	for k, n := range f.calls {
		assert.Equal(t, 1, n, "series %s fetched once", k)
	}
	assert.Equal(t, 16.0, testutil.ToFloat64(m.CombinationsScreened))
}

func TestHarnessMatchesSequentialBacktests(t *testing.T) {
	f := &seriesFetcher{calls: make(map[string]int)}
	h := newHarness(f, 8, nil)

	results, err := h.Run(context.Background(), testGrid())
	require.NoError(t, err)

	for i, c := range testGrid().Combinations() {
		want, err := h.backtester.Run(context.Background(), c.Job(200))
		require.NoError(t, err)
		assert.Equal(t, want.Trades, results[i].Trades, c.Key())
	}
}

func TestHarnessFetchFailureFailsRun(t *testing.T) {
	f := &seriesFetcher{calls: make(map[string]int), fail: "MSFT"}

	_, err := newHarness(f, 2, nil).Run(context.Background(), testGrid())
	require.Error(t, err)
	assert.True(t, errors.Is(err, gather.ErrFetchExhausted))
}

func TestHarnessEmptyGrid(t *testing.T) {
	f := &seriesFetcher{calls: make(map[string]int)}
	results, err := newHarness(f, 0, nil).Run(context.Background(), Grid{})
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Empty(t, f.calls)
}

func TestGridFromConfig(t *testing.T) {
	g, err := GridFromConfig(config.ScreeningConfig{
		Symbols:    []string{"AAPL"},
		Timeframes: []string{"1d", "4h"},
		Strategies: []domain.StrategyConfig{{Type: "sma_cross", Params: map[string]float64{"fast": 5, "slow": 20}}},
		StopLosses: []domain.FinderConfig{
			{Type: "fixed", Params: map[string]float64{"pct": 0.03}},
			{Type: "atr", Params: map[string]float64{"period": 14, "multiplier": 2}},
		},
		TakeProfits: []domain.FinderConfig{{Type: "risk_reward", Params: map[string]float64{"ratio": 2}}},
	})
	require.NoError(t, err)
	assert.Equal(t, []domain.Timeframe{domain.Timeframe1d, domain.Timeframe4h}, g.Timeframes)
	require.Len(t, g.Strategies, 1)
	assert.Equal(t, "sma_cross(fast=5,slow=20)", g.Strategies[0].ID())
	assert.Len(t, g.Combinations(), 1*2*1*2*1)

	g, err = GridFromConfig(config.ScreeningConfig{Symbols: []string{"AAPL"}, Timeframes: []string{"1d"}})
	require.NoError(t, err)
	assert.Len(t, g.Strategies, len(builtins.Types()))
	require.Len(t, g.StopLosses, 1)
	assert.Equal(t, "sl_fixed(pct=0.02)", g.StopLosses[0].ID())
	assert.Empty(t, g.TakeProfits)

	_, err = GridFromConfig(config.ScreeningConfig{StopLosses: []domain.FinderConfig{{Type: "magic"}}})
	assert.True(t, errors.Is(err, risk.ErrUnknownFinderType))

	_, err = GridFromConfig(config.ScreeningConfig{Timeframes: []string{"7x"}})
	assert.Error(t, err)
}

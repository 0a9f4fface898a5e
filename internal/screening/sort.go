package screening

import (
	"fmt"
	"math"
	"sort"

	"stratlab/internal/backtest"
)

// Metric names a ranking column.
type Metric string

const (
	MetricTotalPnL     Metric = "total_pnl"
	MetricWinRate      Metric = "win_rate"
	MetricSharpe       Metric = "sharpe"
	MetricProfitFactor Metric = "profit_factor"
	MetricTotalReturn  Metric = "total_return"
	MetricTotalTrades  Metric = "total_trades"
	MetricMaxDrawdown  Metric = "max_drawdown"
)

var metricValues = map[Metric]func(*backtest.Result) float64{
	MetricTotalPnL:     func(r *backtest.Result) float64 { return r.Summary.TotalPnL },
	MetricWinRate:      func(r *backtest.Result) float64 { return r.Summary.WinRate },
	MetricSharpe:       func(r *backtest.Result) float64 { return r.Summary.Sharpe },
	MetricProfitFactor: func(r *backtest.Result) float64 { return r.Summary.ProfitFactor },
	MetricTotalReturn:  func(r *backtest.Result) float64 { return r.Summary.TotalReturn },
	MetricTotalTrades:  func(r *backtest.Result) float64 { return float64(r.Summary.TotalTrades) },
	MetricMaxDrawdown:  func(r *backtest.Result) float64 { return r.Summary.MaxDrawdown },
}

// ParseMetric validates a metric name. An empty name selects total_pnl.
func ParseMetric(s string) (Metric, error) {
	if s == "" {
		return MetricTotalPnL, nil
	}
	m := Metric(s)
	if _, ok := metricValues[m]; !ok {
		return "", fmt.Errorf("unknown sort metric %q", s)
	}
	return m, nil
}

// Metrics lists the sortable metric names.
func Metrics() []Metric {
	out := make([]Metric, 0, len(metricValues))
	for m := range metricValues {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Value returns r's value for metric, NaN for an unknown metric.
func Value(r *backtest.Result, metric Metric) float64 {
	fn, ok := metricValues[metric]
	if !ok {
		return math.NaN()
	}
	return fn(r)
}

// Sort orders results in place, descending by metric. NaN ranks last and
// ties are broken by ascending key. An unknown metric sorts by total_pnl.
func Sort(results []*backtest.Result, metric Metric) {
	if _, ok := metricValues[metric]; !ok {
		metric = MetricTotalPnL
	}
	sort.SliceStable(results, func(i, j int) bool {
		a, b := Value(results[i], metric), Value(results[j], metric)
		switch aNaN, bNaN := math.IsNaN(a), math.IsNaN(b); {
		case aNaN && bNaN:
			return results[i].Key < results[j].Key
		case aNaN:
			return false
		case bNaN:
			return true
		}
		if a != b {
			return a > b
		}
		return results[i].Key < results[j].Key
	})
}

// Top returns the first n results, or all when n ≤ 0.
func Top(results []*backtest.Result, n int) []*backtest.Result {
	if n <= 0 || n >= len(results) {
		return results
	}
	return results[:n]
}

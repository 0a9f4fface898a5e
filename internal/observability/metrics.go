// Package observability provides Prometheus metrics for stratlab binaries.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "stratlab"

// Metrics holds the collectors of one process on a private registry. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Backtest metrics
	BacktestsTotal   *prometheus.CounterVec
	BacktestDuration prometheus.Histogram
	TradesSimulated  prometheus.Counter

	// Screening metrics
	CombinationsScreened prometheus.Counter
	ScreeningDuration    prometheus.Histogram

	// Data metrics
	FetchAttempts *prometheus.CounterVec
	FetchFailures *prometheus.CounterVec
	BarsFetched   prometheus.Counter
}

// NewMetrics creates a Metrics instance with every collector registered.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		BacktestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "runs_total",
			Help:      "Total number of backtests by status",
		}, []string{"status"}),
		BacktestDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "duration_seconds",
			Help:      "Wall time of a single backtest",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
		}),
		TradesSimulated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "trades_simulated_total",
			Help:      "Total number of closed trades across all backtests",
		}),

		CombinationsScreened: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "screening",
			Name:      "combinations_total",
			Help:      "Total number of combinations evaluated",
		}),
		ScreeningDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "screening",
			Name:      "duration_seconds",
			Help:      "Wall time of a screening run",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		}),

		FetchAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "data",
			Name:      "fetch_attempts_total",
			Help:      "Total number of upstream bar fetch attempts by source",
		}, []string{"source"}),
		FetchFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "data",
			Name:      "fetch_failures_total",
			Help:      "Total number of failed bar fetch attempts by source",
		}, []string{"source"}),
		BarsFetched: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "data",
			Name:      "bars_fetched_total",
			Help:      "Total number of bars returned by fetchers",
		}),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveBacktest records one finished backtest.
func (m *Metrics) ObserveBacktest(d time.Duration, trades int, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.BacktestsTotal.WithLabelValues(status).Inc()
	m.BacktestDuration.Observe(d.Seconds())
	m.TradesSimulated.Add(float64(trades))
}

// ObserveScreening records one finished screening run.
func (m *Metrics) ObserveScreening(d time.Duration, combinations int) {
	if m == nil {
		return
	}
	m.CombinationsScreened.Add(float64(combinations))
	m.ScreeningDuration.Observe(d.Seconds())
}

// ObserveFetch records one upstream fetch attempt.
func (m *Metrics) ObserveFetch(source string, bars int, err error) {
	if m == nil {
		return
	}
	m.FetchAttempts.WithLabelValues(source).Inc()
	if err != nil {
		m.FetchFailures.WithLabelValues(source).Inc()
		return
	}
	m.BarsFetched.Add(float64(bars))
}

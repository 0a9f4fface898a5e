// Package backtest runs one strategy × stop-loss × take-profit combination
// over the history of one symbol and timeframe.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"stratlab/internal/domain"
	"stratlab/internal/engine"
	"stratlab/internal/gather"
	"stratlab/internal/metrics"
	"stratlab/internal/observability"
	"stratlab/internal/risk"
	"stratlab/internal/store"
	"stratlab/internal/strategy"
)

// ErrInvalidJob is returned for a job missing its strategy or stop finder.
var ErrInvalidJob = errors.New("invalid backtest job")

// KeySeparator joins the identity parts of a job key.
const KeySeparator = "|"

// Job is one combination to evaluate.
type Job struct {
	Symbol     string
	Timeframe  domain.Timeframe
	Strategy   strategy.Strategy
	StopLoss   risk.StopLossFinder
	TakeProfit risk.TakeProfitFinder
	// Lookback is the number of most recent bars to replay.
	Lookback int
}

// Key identifies the job as symbol|timeframe|strategy|stop|target.
func (j Job) Key() string {
	tp := risk.TakeProfitFinder(risk.NoTarget{})
	if j.TakeProfit != nil {
		tp = j.TakeProfit
	}
	return strings.Join([]string{
		j.Symbol, j.Timeframe.String(), j.Strategy.ID(), j.StopLoss.ID(), tp.ID(),
	}, KeySeparator)
}

func (j Job) validate() error {
	if j.Strategy == nil || j.StopLoss == nil {
		return fmt.Errorf("%w: %s %s needs a strategy and a stop loss", ErrInvalidJob, j.Symbol, j.Timeframe)
	}
	return nil
}

// Settings are the account and sizing parameters shared by every job.
type Settings struct {
	InitialCapital float64
	Compound       bool
	RiskFraction   float64
	DefaultSize    float64
}

// InstrumentSource supplies per-symbol sizing and rounding metadata.
type InstrumentSource interface {
	Instrument(symbol string) domain.Instrument
}

// InstrumentFunc adapts a function to InstrumentSource.
type InstrumentFunc func(symbol string) domain.Instrument

// Instrument implements InstrumentSource.
func (f InstrumentFunc) Instrument(symbol string) domain.Instrument { return f(symbol) }

// Result is the outcome of one job.
type Result struct {
	Key          string
	Symbol       string
	Timeframe    domain.Timeframe
	StrategyID   string
	StopLossID   string
	TakeProfitID string

	Bars    int
	Trades  []domain.TradeRecord
	Summary metrics.Summary

	TotalReturn  float64
	SharpeRatio  float64
	MaxDrawdown  float64
	TotalTrades  int
	WinRate      float64
	ProfitFactor float64

	Duration time.Duration
}

// Record converts the result into its persisted form.
func (r *Result) Record(rank int) store.ResultRecord {
	s := r.Summary
	return store.ResultRecord{
		Rank:                 rank,
		Key:                  r.Key,
		Symbol:               r.Symbol,
		Timeframe:            r.Timeframe.String(),
		Strategy:             r.StrategyID,
		StopLoss:             r.StopLossID,
		TakeProfit:           r.TakeProfitID,
		TotalTrades:          s.TotalTrades,
		WinRate:              s.WinRate,
		TotalPnL:             s.TotalPnL,
		AvgPnL:               s.AvgPnL,
		Sharpe:               s.Sharpe,
		MaxDrawdown:          s.MaxDrawdown,
		MaxConsecutiveWins:   s.MaxConsecutiveWins,
		MaxConsecutiveLosses: s.MaxConsecutiveLosses,
		ProfitFactor:         s.ProfitFactor,
		FinalEquity:          s.FinalEquity,
		TotalReturn:          s.TotalReturn,
	}
}

// Backtester replays historical bar data through a strategy and computes
// performance metrics. It is safe for concurrent use.
type Backtester struct {
	fetcher     gather.Fetcher
	instruments InstrumentSource
	settings    Settings
	metrics     *observability.Metrics
	log         *slog.Logger
}

// NewBacktester creates a Backtester that loads bars through f. A nil
// metrics records nothing.
func NewBacktester(f gather.Fetcher, instruments InstrumentSource, settings Settings, m *observability.Metrics) *Backtester {
	if instruments == nil {
		instruments = InstrumentFunc(func(symbol string) domain.Instrument {
			return domain.Instrument{Symbol: symbol, PricePrecision: 2, SizePrecision: 4}
		})
	}
	return &Backtester{
		fetcher:     f,
		instruments: instruments,
		settings:    settings,
		metrics:     m,
		log:         slog.Default().With("component", "backtest"),
	}
}

// Run loads the job's bars and replays them.
func (bt *Backtester) Run(ctx context.Context, job Job) (*Result, error) {
	if err := job.validate(); err != nil {
		return nil, err
	}
	start := time.Now()

	bars, err := bt.fetcher.Fetch(ctx, job.Symbol, job.Timeframe, job.Lookback)
	if err != nil {
		bt.metrics.ObserveBacktest(time.Since(start), 0, err)
		return nil, fmt.Errorf("loading bars for %s %s: %w", job.Symbol, job.Timeframe, err)
	}
	return bt.RunBars(job, bars)
}

// RunBars replays preloaded bars. The engine only reads bars.
func (bt *Backtester) RunBars(job Job, bars []domain.Bar) (*Result, error) {
	if err := job.validate(); err != nil {
		return nil, err
	}
	start := time.Now()
	key := job.Key()
	log := bt.log.With("key", key)

	if n := max(job.Strategy.Lookback(), job.StopLoss.Lookback()); len(bars) < n {
		log.Warn("history shorter than lookback", "bars", len(bars), "lookback", n)
	}

	inst := bt.instruments.Instrument(job.Symbol)
	rm := risk.NewManager(job.StopLoss, job.TakeProfit, risk.Params{
		RiskFraction: bt.settings.RiskFraction,
		DefaultSize:  bt.settings.DefaultSize,
		Instrument:   inst,
	}, log)

	eng := engine.New(job.Strategy, rm, engine.Config{
		InitialCapital: bt.settings.InitialCapital,
		Compound:       bt.settings.Compound,
	}, log)

	trades := eng.Run(bars).Trades()
	summary := metrics.Compute(trades, bt.settings.InitialCapital)

	res := &Result{
		Key:          key,
		Symbol:       job.Symbol,
		Timeframe:    job.Timeframe,
		StrategyID:   job.Strategy.ID(),
		StopLossID:   rm.StopLossFinder().ID(),
		TakeProfitID: rm.TakeProfitFinder().ID(),
		Bars:         len(bars),
		Trades:       trades,
		Summary:      summary,
		TotalReturn:  summary.TotalReturn,
		SharpeRatio:  summary.Sharpe,
		MaxDrawdown:  summary.MaxDrawdown,
		TotalTrades:  summary.TotalTrades,
		WinRate:      summary.WinRate,
		ProfitFactor: summary.ProfitFactor,
		Duration:     time.Since(start),
	}
	bt.metrics.ObserveBacktest(res.Duration, res.TotalTrades, nil)

	log.Debug("backtest done",
		"bars", len(bars),
		"trades", res.TotalTrades,
		"pnl", summary.TotalPnL,
		"elapsed", res.Duration,
	)
	return res, nil
}

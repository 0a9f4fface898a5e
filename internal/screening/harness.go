package screening

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"stratlab/internal/backtest"
	"stratlab/internal/domain"
	"stratlab/internal/gather"
	"stratlab/internal/observability"
)

// Options configures a Harness.
type Options struct {
	// Workers bounds concurrent tasks; ≤ 0 selects runtime.NumCPU().
	Workers int
	// Lookback is the number of bars fetched per series.
	Lookback int
	Metrics  *observability.Metrics
}

// Harness fetches each series once and evaluates every combination of a
// grid on a bounded worker pool.
type Harness struct {
	fetcher    gather.Fetcher
	backtester *backtest.Backtester
	workers    int
	lookback   int
	metrics    *observability.Metrics
	log        *slog.Logger
}

// NewHarness creates a Harness.
func NewHarness(f gather.Fetcher, bt *backtest.Backtester, opts Options) *Harness {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Harness{
		fetcher:    f,
		backtester: bt,
		workers:    workers,
		lookback:   opts.Lookback,
		metrics:    opts.Metrics,
		log:        slog.Default().With("component", "screening"),
	}
}

type seriesKey struct {
	symbol string
	tf     domain.Timeframe
}

// Run evaluates every combination of grid and returns the results in
// combination order. A failed series fetch fails the run before any
// combination is evaluated. Once dispatched, tasks are not cancelled by
// the failure of a sibling.
func (h *Harness) Run(ctx context.Context, grid Grid) ([]*backtest.Result, error) {
	combos := grid.Combinations()
	if len(combos) == 0 {
		h.log.Warn("empty screening grid")
		return nil, nil
	}
	start := time.Now()

	series, err := h.fetchAll(ctx, combos)
	if err != nil {
		return nil, err
	}

	h.log.Info("screening started",
		"combinations", len(combos),
		"series", len(series),
		"workers", h.workers,
	)

	results := make([]*backtest.Result, len(combos))
	var g errgroup.Group
	g.SetLimit(h.workers)
	for i, c := range combos {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			src := series[seriesKey{c.Symbol, c.Timeframe}]
			bars := make([]domain.Bar, len(src))
			copy(bars, src)

			res, err := h.backtester.RunBars(c.Job(h.lookback), bars)
			if err != nil {
				return fmt.Errorf("combination %s: %w", c.Key(), err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	elapsed := time.Since(start)
	h.metrics.ObserveScreening(elapsed, len(combos))
	h.log.Info("screening complete",
		"combinations", len(combos),
		"elapsed", elapsed.Round(time.Millisecond),
	)
	return results, nil
}

// fetchAll loads every distinct (symbol, timeframe) series of combos once.
func (h *Harness) fetchAll(ctx context.Context, combos []Combination) (map[seriesKey][]domain.Bar, error) {
	var keys []seriesKey
	seen := make(map[seriesKey]struct{})
	for _, c := range combos {
		k := seriesKey{c.Symbol, c.Timeframe}
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}

	var (
		mu     sync.Mutex
		series = make(map[seriesKey][]domain.Bar, len(keys))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.workers)
	for _, k := range keys {
		g.Go(func() error {
			bars, err := h.fetcher.Fetch(gctx, k.symbol, k.tf, h.lookback)
			if err != nil {
				return fmt.Errorf("fetching %s %s: %w", k.symbol, k.tf, err)
			}
			mu.Lock()
			series[k] = bars
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return series, nil
}

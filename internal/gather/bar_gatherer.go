package gather

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"stratlab/internal/domain"
	"stratlab/internal/store"
)

// Compile-time interface check.
var _ Gatherer = (*BarGatherer)(nil)

// BarGatherer prefetches every symbol × timeframe series from an upstream
// Fetcher into a BarStore with a bounded worker pool.
type BarGatherer struct {
	fetcher    Fetcher
	store      store.BarStore
	symbols    []string
	timeframes []domain.Timeframe
	lookback   int
	maxWorkers int
	log        *slog.Logger
}

// NewBarGatherer creates a BarGatherer.
func NewBarGatherer(f Fetcher, s store.BarStore, symbols []string, timeframes []domain.Timeframe, lookback, maxWorkers int) *BarGatherer {
	return &BarGatherer{
		fetcher:    f,
		store:      s,
		symbols:    symbols,
		timeframes: timeframes,
		lookback:   lookback,
		maxWorkers: max(maxWorkers, 1),
		log:        slog.Default().With("gatherer", "bars"),
	}
}

// Name returns the gatherer identifier.
func (g *BarGatherer) Name() string { return "bars" }

type series struct {
	symbol string
	tf     domain.Timeframe
}

// Run fetches and stores every series. Failed series are logged and counted;
// Run returns an error naming the failure count if any series failed.
func (g *BarGatherer) Run(ctx context.Context) error {
	var jobs []series
	for _, sym := range g.symbols {
		for _, tf := range g.timeframes {
			jobs = append(jobs, series{symbol: sym, tf: tf})
		}
	}
	if len(jobs) == 0 {
		g.log.Info("nothing to gather")
		return nil
	}

	jobCh := make(chan series, len(jobs))
	for _, j := range jobs {
		jobCh <- j
	}
	close(jobCh)

	var (
		wg        sync.WaitGroup
		totalBars atomic.Int64
		failed    atomic.Int64
		runStart  = time.Now()
	)

	g.log.Info("starting bar gather", "series", len(jobs), "lookback", g.lookback)

	workers := min(g.maxWorkers, len(jobs))
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobCh {
				if ctx.Err() != nil {
					return
				}

				bars, err := g.fetcher.Fetch(ctx, j.symbol, j.tf, g.lookback)
				if err != nil {
					failed.Add(1)
					g.log.Error("fetch failed", "symbol", j.symbol, "timeframe", j.tf, "err", err)
					continue
				}
				if err := g.store.WriteBars(ctx, j.tf, bars); err != nil {
					failed.Add(1)
					g.log.Error("writing bars failed", "symbol", j.symbol, "timeframe", j.tf, "err", err)
					continue
				}

				totalBars.Add(int64(len(bars)))
				g.log.Info("series done",
					"symbol", j.symbol,
					"timeframe", j.tf,
					"bars", len(bars),
					"elapsed", time.Since(runStart).Round(time.Millisecond),
				)
			}
		}()
	}

	wg.Wait()

	if ctx.Err() != nil {
		return ctx.Err()
	}

	g.log.Info("complete",
		"series", len(jobs),
		"failed", failed.Load(),
		"bars", totalBars.Load(),
		"elapsed", time.Since(runStart).Round(time.Second),
	)
	if n := failed.Load(); n > 0 {
		return fmt.Errorf("%d of %d series failed", n, len(jobs))
	}
	return nil
}

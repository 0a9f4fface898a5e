package gather

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"stratlab/internal/domain"
	"stratlab/internal/store"
)

// Compile-time interface check.
var _ Fetcher = (*CachedFetcher)(nil)

// CachedFetcher serves bars from a BarStore and falls through to Upstream
// when the cache holds fewer than lookback bars or its newest bar is older
// than MaxAge. Upstream results are written back to the store. A nil
// Upstream makes the fetcher read-only.
type CachedFetcher struct {
	Upstream Fetcher
	Store    store.BarStore
	// MaxAge bounds the age of the newest cached bar; zero disables the
	// freshness check.
	MaxAge time.Duration

	now func() time.Time
	log *slog.Logger
}

// NewCachedFetcher creates a CachedFetcher.
func NewCachedFetcher(upstream Fetcher, s store.BarStore, maxAge time.Duration) *CachedFetcher {
	return &CachedFetcher{
		Upstream: upstream,
		Store:    s,
		MaxAge:   maxAge,
		now:      time.Now,
		log:      slog.Default().With("fetcher", "cache"),
	}
}

// Fetch returns the cached series when it is sufficient, otherwise the
// upstream series merged into the cache.
func (f *CachedFetcher) Fetch(ctx context.Context, symbol string, tf domain.Timeframe, lookback int) ([]domain.Bar, error) {
	cached, err := f.Store.ReadBars(ctx, symbol, tf, time.Time{}, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("reading cache for %s %s: %w", symbol, tf, err)
	}
	cached = Normalize(cached, 0)

	if f.sufficient(cached, lookback) || f.Upstream == nil {
		if len(cached) == 0 {
			return nil, fmt.Errorf("%w: %s %s not cached", ErrNoData, symbol, tf)
		}
		f.log.Debug("cache hit", "symbol", symbol, "timeframe", tf, "bars", len(cached))
		return Normalize(cached, lookback), nil
	}

	fresh, err := f.Upstream.Fetch(ctx, symbol, tf, lookback)
	if err != nil {
		// Only a cache that is merely old may stand in; a short one would
		// hand the caller less history than it asked for.
		if len(cached) > 0 && len(cached) >= lookback && !errors.Is(err, context.Canceled) {
			f.log.Warn("upstream fetch failed, serving stale cache",
				"symbol", symbol, "timeframe", tf, "bars", len(cached), "err", err)
			return Normalize(cached, lookback), nil
		}
		return nil, err
	}

	if err := f.Store.WriteBars(ctx, tf, fresh); err != nil {
		f.log.Warn("writing cache failed", "symbol", symbol, "timeframe", tf, "err", err)
	}
	return Normalize(append(cached, fresh...), lookback), nil
}

func (f *CachedFetcher) sufficient(bars []domain.Bar, lookback int) bool {
	if len(bars) == 0 || len(bars) < lookback {
		return false
	}
	if f.MaxAge <= 0 {
		return true
	}
	return f.now().Sub(bars[len(bars)-1].Timestamp) <= f.MaxAge
}

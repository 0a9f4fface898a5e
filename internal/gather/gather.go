// Package gather loads historical bars from upstream sources and keeps a
// local Parquet cache of them.
package gather

import (
	"context"
	"errors"
	"sort"
	"time"

	"stratlab/internal/domain"
)

var (
	// ErrNoData is returned when a source has no bars for a series.
	ErrNoData = errors.New("no data")
	// ErrFetchExhausted is returned when every retry of an upstream fetch
	// failed.
	ErrFetchExhausted = errors.New("fetch retries exhausted")
)

// Fetcher returns the most recent lookback bars of a series in ascending
// time order.
type Fetcher interface {
	Fetch(ctx context.Context, symbol string, tf domain.Timeframe, lookback int) ([]domain.Bar, error)
}

// Gatherer is the interface for all data gathering processes.
type Gatherer interface {
	// Name returns the gatherer identifier.
	Name() string
	// Run performs the gathering job. It returns early if ctx is cancelled.
	Run(ctx context.Context) error
}

// DateRange represents a time range for data fetching.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Window returns a calendar range ending at end that should hold at least
// lookback bars of tf. Equities widen the range to cover weekends, holidays
// and closed hours; crypto trades around the clock.
func Window(symbol string, tf domain.Timeframe, lookback int, end time.Time) DateRange {
	span := time.Duration(lookback) * tf.Duration()
	if !domain.IsCrypto(symbol) {
		if tf == domain.Timeframe1d {
			span = span * 8 / 5
		} else {
			// At least 6 trading hours on 5 of 7 days.
			span = span * 7 * 24 / (5 * 6)
		}
	}
	return DateRange{Start: end.Add(-span), End: end}
}

// Normalize sorts bars by timestamp, drops duplicate timestamps keeping the
// last occurrence and keeps the final lookback bars. lookback ≤ 0 keeps all.
// The input slice is not modified.
func Normalize(bars []domain.Bar, lookback int) []domain.Bar {
	if len(bars) == 0 {
		return nil
	}

	out := make([]domain.Bar, len(bars))
	copy(out, bars)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})

	n := 0
	for i := range out {
		if n > 0 && out[i].Timestamp.Equal(out[n-1].Timestamp) {
			out[n-1] = out[i]
			continue
		}
		out[n] = out[i]
		n++
	}
	out = out[:n]

	if lookback > 0 && len(out) > lookback {
		out = out[len(out)-lookback:]
	}
	return out
}

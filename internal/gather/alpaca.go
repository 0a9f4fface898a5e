package gather

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"stratlab/internal/domain"
	"stratlab/internal/observability"
	"stratlab/internal/util"
)

// Compile-time interface check.
var _ Fetcher = (*AlpacaFetcher)(nil)

// barClient is the subset of *marketdata.Client used by AlpacaFetcher.
type barClient interface {
	GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error)
	GetCryptoBars(symbol string, req marketdata.GetCryptoBarsRequest) ([]marketdata.CryptoBar, error)
}

// AlpacaOptions configures an AlpacaFetcher.
type AlpacaOptions struct {
	APIKey    string
	APISecret string
	// DataURL overrides the market-data endpoint.
	DataURL string
	// Feed is the equity feed, "iex" or "sip".
	Feed string

	RateLimitPerMin int
	MaxRetries      int
	RetryBaseDelay  time.Duration

	Metrics *observability.Metrics
}

// AlpacaFetcher loads bars from the Alpaca market-data API. Equities use
// GetBars and BASE/QUOTE symbols use GetCryptoBars. Calls are rate limited
// and retried with exponential backoff.
type AlpacaFetcher struct {
	client     barClient
	feed       string
	limiter    *util.RateLimiter
	maxRetries int
	baseDelay  time.Duration
	metrics    *observability.Metrics
	now        func() time.Time
	log        *slog.Logger
}

// NewAlpacaFetcher creates an AlpacaFetcher with the given credentials.
func NewAlpacaFetcher(opts AlpacaOptions) *AlpacaFetcher {
	clientOpts := marketdata.ClientOpts{
		APIKey:    opts.APIKey,
		APISecret: opts.APISecret,
	}
	if opts.DataURL != "" {
		clientOpts.BaseURL = opts.DataURL
	}
	return newAlpacaFetcher(marketdata.NewClient(clientOpts), opts)
}

func newAlpacaFetcher(client barClient, opts AlpacaOptions) *AlpacaFetcher {
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 1
	}
	return &AlpacaFetcher{
		client:     client,
		feed:       opts.Feed,
		limiter:    util.NewRateLimiter(opts.RateLimitPerMin),
		maxRetries: opts.MaxRetries,
		baseDelay:  opts.RetryBaseDelay,
		metrics:    opts.Metrics,
		now:        time.Now,
		log:        slog.Default().With("fetcher", "alpaca"),
	}
}

// Fetch returns the last lookback bars of symbol. An empty response yields
// ErrNoData; repeated failures yield ErrFetchExhausted.
func (f *AlpacaFetcher) Fetch(ctx context.Context, symbol string, tf domain.Timeframe, lookback int) ([]domain.Bar, error) {
	frame, err := timeFrame(tf)
	if err != nil {
		return nil, err
	}
	window := Window(symbol, tf, lookback, f.now().UTC())

	var bars []domain.Bar
	err = util.RetryNotify(ctx, f.maxRetries, f.baseDelay, func() error {
		if err := f.limiter.Wait(ctx); err != nil {
			return err
		}
		var ferr error
		bars, ferr = f.fetchOnce(symbol, frame, window)
		f.metrics.ObserveFetch("alpaca", len(bars), ferr)
		return ferr
	}, func(attempt int, err error, wait time.Duration) {
		f.log.Warn("fetch failed, retrying",
			"symbol", symbol,
			"timeframe", tf,
			"attempt", attempt,
			"wait", wait,
			"err", err,
		)
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s %s after %d attempts: %v", ErrFetchExhausted, symbol, tf, f.maxRetries, err)
	}

	bars = Normalize(bars, lookback)
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: %s %s", ErrNoData, symbol, tf)
	}
	f.log.Debug("fetched bars", "symbol", symbol, "timeframe", tf, "bars", len(bars))
	return bars, nil
}

func (f *AlpacaFetcher) fetchOnce(symbol string, frame marketdata.TimeFrame, window DateRange) ([]domain.Bar, error) {
	sym := strings.ToUpper(symbol)

	if domain.IsCrypto(sym) {
		cbars, err := f.client.GetCryptoBars(sym, marketdata.GetCryptoBarsRequest{
			TimeFrame: frame,
			Start:     window.Start,
			End:       window.End,
		})
		if err != nil {
			return nil, fmt.Errorf("GetCryptoBars: %w", err)
		}
		bars := make([]domain.Bar, 0, len(cbars))
		for _, cb := range cbars {
			bars = append(bars, domain.Bar{
				Symbol:    sym,
				Timestamp: cb.Timestamp.UTC(),
				Open:      cb.Open,
				High:      cb.High,
				Low:       cb.Low,
				Close:     cb.Close,
				Volume:    cb.Volume,
			})
		}
		return bars, nil
	}

	abars, err := f.client.GetBars(sym, marketdata.GetBarsRequest{
		TimeFrame:  frame,
		Adjustment: marketdata.Split,
		Start:      window.Start,
		End:        window.End,
		Feed:       marketdata.Feed(f.feed),
	})
	if err != nil {
		return nil, fmt.Errorf("GetBars: %w", err)
	}
	bars := make([]domain.Bar, 0, len(abars))
	for _, ab := range abars {
		bars = append(bars, domain.Bar{
			Symbol:    sym,
			Timestamp: ab.Timestamp.UTC(),
			Open:      ab.Open,
			High:      ab.High,
			Low:       ab.Low,
			Close:     ab.Close,
			Volume:    float64(ab.Volume),
		})
	}
	return bars, nil
}

// timeFrame maps a timeframe label to the Alpaca representation.
func timeFrame(tf domain.Timeframe) (marketdata.TimeFrame, error) {
	switch tf {
	case domain.Timeframe1m:
		return marketdata.NewTimeFrame(1, marketdata.Min), nil
	case domain.Timeframe5m:
		return marketdata.NewTimeFrame(5, marketdata.Min), nil
	case domain.Timeframe15m:
		return marketdata.NewTimeFrame(15, marketdata.Min), nil
	case domain.Timeframe30m:
		return marketdata.NewTimeFrame(30, marketdata.Min), nil
	case domain.Timeframe1h:
		return marketdata.NewTimeFrame(1, marketdata.Hour), nil
	case domain.Timeframe4h:
		return marketdata.NewTimeFrame(4, marketdata.Hour), nil
	case domain.Timeframe1d:
		return marketdata.OneDay, nil
	default:
		return marketdata.TimeFrame{}, fmt.Errorf("unsupported timeframe %q", tf)
	}
}

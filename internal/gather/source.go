package gather

import (
	"fmt"

	"stratlab/internal/config"
	"stratlab/internal/observability"
	"stratlab/internal/store"
)

// NewFetcher builds the fetcher selected by cfg.Data.Source. With
// cfg.Data.Cache set, an alpaca or csv source is read through the Parquet
// store; the parquet source reads the store alone.
func NewFetcher(cfg *config.Config, bars store.BarStore, m *observability.Metrics) (Fetcher, error) {
	var upstream Fetcher
	switch cfg.Data.Source {
	case "alpaca":
		if cfg.Alpaca.APIKey == "" || cfg.Alpaca.APISecret == "" {
			return nil, fmt.Errorf("alpaca source needs ALPACA_API_KEY and ALPACA_API_SECRET")
		}
		upstream = NewAlpacaFetcher(AlpacaOptions{
			APIKey:          cfg.Alpaca.APIKey,
			APISecret:       cfg.Alpaca.APISecret,
			DataURL:         cfg.Alpaca.DataURL,
			Feed:            cfg.Alpaca.Feed,
			RateLimitPerMin: cfg.Data.RateLimitPerMin,
			MaxRetries:      cfg.Data.MaxRetries,
			RetryBaseDelay:  cfg.Data.RetryBaseDelay,
			Metrics:         m,
		})
	case "csv":
		dir := cfg.Data.CSVDir
		if dir == "" {
			return nil, fmt.Errorf("csv source needs data.csv_dir")
		}
		upstream = NewCSVFetcher(dir)
	case "parquet":
		return NewCachedFetcher(nil, bars, 0), nil
	default:
		return nil, fmt.Errorf("unknown data source %q", cfg.Data.Source)
	}

	if cfg.Data.Cache && bars != nil {
		return NewCachedFetcher(upstream, bars, cfg.Data.CacheMaxAge), nil
	}
	return upstream, nil
}

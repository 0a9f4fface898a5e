package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stratlab/internal/backtest"
	"stratlab/internal/broker"
	"stratlab/internal/config"
	"stratlab/internal/gather"
	"stratlab/internal/observability"
	"stratlab/internal/report"
	"stratlab/internal/screening"
	"stratlab/internal/store"
	"stratlab/internal/store/backend"
	"stratlab/internal/strategy/builtins"
	"stratlab/internal/util"
)

func main() {
	list := flag.Bool("list", false, "print the built-in strategies and sort metrics, then exit")
	metricsAddr := flag.String("metrics-addr", "", "serve Prometheus metrics on this address (overrides metrics.addr)")
	sortBy := flag.String("sort", "", "rank results by this metric (overrides screening.sort_by)")
	top := flag.Int("top", 0, "number of results to print (overrides screening.top_n)")
	out := flag.String("out", "", "write all results to this CSV file (overrides screening.output_csv)")
	flag.Parse()

	if *list {
		printCatalog(os.Stdout)
		return
	}

	cfgPath := "config/stratlab.yaml"
	if p := os.Getenv("STRATLAB_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *metricsAddr != "" {
		cfg.Metrics.Addr = *metricsAddr
	}
	if *sortBy != "" {
		cfg.Screening.SortBy = *sortBy
	}
	if *top > 0 {
		cfg.Screening.TopN = *top
	}
	if *out != "" {
		cfg.Screening.OutputCSV = *out
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	obs := observability.NewMetrics()
	if cfg.Metrics.Addr != "" {
		go serveMetrics(cfg.Metrics.Addr, obs)
	}

	metric, err := screening.ParseMetric(cfg.Screening.SortBy)
	if err != nil {
		slog.Warn("falling back to total_pnl", "error", err)
		metric = screening.MetricTotalPnL
	}

	grid, err := screening.GridFromConfig(cfg.Screening)
	if err != nil {
		log.Fatalf("invalid screening grid: %v", err)
	}

	bars := store.NewParquetStore(cfg.Storage.DataDir)
	fetcher, err := gather.NewFetcher(cfg, bars, obs)
	if err != nil {
		log.Fatalf("failed to create fetcher: %v", err)
	}

	capital := cfg.Risk.AccountSize
	var instruments backtest.InstrumentSource = backtest.InstrumentFunc(cfg.Instrument)
	if cfg.Broker.Enabled {
		capital, instruments = fromBroker(ctx, cfg, capital)
	}

	bt := backtest.NewBacktester(fetcher, instruments, backtest.Settings{
		InitialCapital: capital,
		Compound:       cfg.Risk.Compound,
		RiskFraction:   cfg.Risk.RiskFraction,
		DefaultSize:    cfg.Risk.DefaultSize,
	}, obs)
	harness := screening.NewHarness(fetcher, bt, screening.Options{
		Workers:  cfg.Screening.Workers,
		Lookback: cfg.Data.Lookback,
		Metrics:  obs,
	})

	run := store.NewRun(string(metric), time.Now())
	slog.Info("starting screening run",
		"run", run.ID,
		"symbols", len(grid.Symbols),
		"timeframes", len(grid.Timeframes),
		"strategies", len(grid.Strategies),
		"source", cfg.Data.Source,
		"sortBy", metric,
	)

	results, err := harness.Run(ctx, grid)
	if err != nil {
		log.Fatalf("screening failed: %v", err)
	}
	screening.Sort(results, metric)
	run.FinishedAt = time.Now().UTC()
	run.Combinations = len(results)

	if err := persist(ctx, cfg, run, results); err != nil {
		slog.Error("failed to persist results", "run", run.ID, "error", err)
	}

	if cfg.Screening.OutputCSV != "" {
		err := report.WriteFile(cfg.Screening.OutputCSV, func(w io.Writer) error {
			return report.WriteResultsCSV(w, results)
		})
		if err != nil {
			log.Fatalf("failed to write %s: %v", cfg.Screening.OutputCSV, err)
		}
		slog.Info("wrote results", "path", cfg.Screening.OutputCSV, "rows", len(results))
	}

	if err := report.RenderTable(os.Stdout, results, cfg.Screening.TopN); err != nil {
		log.Fatalf("failed to render results: %v", err)
	}
}

func printCatalog(w io.Writer) {
	fmt.Fprintln(w, "strategies:")
	for _, s := range builtins.Defaults().All() {
		fmt.Fprintf(w, "  %-20s %s (lookback %d)\n", s.Name(), s.ID(), s.Lookback())
	}
	fmt.Fprintln(w, "sort metrics:")
	for _, m := range screening.Metrics() {
		fmt.Fprintf(w, "  %s\n", m)
	}
}

func serveMetrics(addr string, obs *observability.Metrics) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", obs.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	slog.Info("serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("metrics server stopped", "error", err)
	}
}

// fromBroker replaces the configured account size with live equity and the
// default instrument metadata with the broker's. Failures keep the
// configured values.
func fromBroker(ctx context.Context, cfg *config.Config, capital float64) (float64, backtest.InstrumentSource) {
	b := broker.NewAlpacaBroker(broker.AlpacaOptions{
		APIKey:         cfg.Alpaca.APIKey,
		APISecret:      cfg.Alpaca.APISecret,
		BaseURL:        cfg.Alpaca.BaseURL,
		Defaults:       cfg.Instrument,
		MaxRetries:     cfg.Data.MaxRetries,
		RetryBaseDelay: cfg.Data.RetryBaseDelay,
	})

	if acct, err := b.GetAccount(ctx); err != nil {
		slog.Warn("broker account unavailable, using configured account size", "error", err)
	} else if acct.Equity > 0 {
		capital = acct.Equity
		slog.Info("using broker equity", "equity", acct.Equity)
	}

	src, err := broker.Preload(ctx, b, cfg.Screening.Symbols, cfg.Instrument)
	if err != nil {
		slog.Warn("some instruments unavailable, using defaults", "error", err)
	}
	return capital, src
}

func persist(ctx context.Context, cfg *config.Config, run store.Run, results []*backtest.Result) error {
	rs, err := backend.OpenResults(ctx, cfg.Storage)
	if errors.Is(err, backend.ErrDisabled) {
		return nil
	}
	if err != nil {
		return err
	}
	defer rs.Close()

	records := make([]store.ResultRecord, len(results))
	for i, r := range results {
		records[i] = r.Record(i + 1)
	}
	if err := rs.SaveRun(ctx, run, records); err != nil {
		return err
	}
	slog.Info("saved screening run", "run", run.ID, "backend", cfg.Storage.Results, "results", len(records))
	return nil
}

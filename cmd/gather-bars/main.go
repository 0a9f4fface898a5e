package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"stratlab/internal/config"
	"stratlab/internal/domain"
	"stratlab/internal/gather"
	"stratlab/internal/observability"
	"stratlab/internal/store"
	"stratlab/internal/util"
)

func main() {
	symbols := flag.String("symbols", "", "comma-separated symbols (overrides screening.symbols)")
	timeframes := flag.String("timeframes", "", "comma-separated timeframes (overrides screening.timeframes)")
	flag.Parse()

	cfgPath := "config/stratlab.yaml"
	if p := os.Getenv("STRATLAB_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	util.SetDefault(util.NewLogger(cfg.Logging.Level, cfg.Logging.Format))

	if cfg.Data.Source == "parquet" {
		log.Fatal("data.source is parquet; gather-bars needs an alpaca or csv upstream")
	}

	syms := cfg.Screening.Symbols
	if *symbols != "" {
		syms = splitList(*symbols)
	}
	tfNames := cfg.Screening.Timeframes
	if *timeframes != "" {
		tfNames = splitList(*timeframes)
	}
	var tfs []domain.Timeframe
	for _, s := range tfNames {
		tf, err := domain.ParseTimeframe(s)
		if err != nil {
			log.Fatalf("invalid timeframe: %v", err)
		}
		tfs = append(tfs, tf)
	}

	// The gatherer writes the store itself; the upstream is read directly.
	upstreamCfg := *cfg
	upstreamCfg.Data.Cache = false
	upstream, err := gather.NewFetcher(&upstreamCfg, nil, observability.NewMetrics())
	if err != nil {
		log.Fatalf("failed to create fetcher: %v", err)
	}

	pstore := store.NewParquetStore(cfg.Storage.DataDir)
	g := gather.NewBarGatherer(upstream, pstore, syms, tfs, cfg.Data.Lookback, cfg.Data.MaxWorkers)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	start := time.Now()
	slog.Info("starting bar gatherer", "symbols", len(syms), "timeframes", tfNames, "source", cfg.Data.Source, "dataDir", cfg.Storage.DataDir)
	if err := g.Run(ctx); err != nil {
		log.Fatalf("gather error: %v", err)
	}
	slog.Info("bar gatherer finished", "elapsed", time.Since(start).Round(time.Millisecond))
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"stratlab/internal/backtest"
	"stratlab/internal/config"
	"stratlab/internal/domain"
	"stratlab/internal/gather"
	"stratlab/internal/report"
	"stratlab/internal/risk"
	"stratlab/internal/store"
	"stratlab/internal/strategy/builtins"
	"stratlab/internal/util"
)

func main() {
	symbol := flag.String("symbol", "", "symbol to backtest, e.g. AAPL or BTC/USD")
	timeframe := flag.String("timeframe", "1d", "bar timeframe")
	strat := flag.String("strategy", "sma_cross", "strategy type")
	stratParams := flag.String("params", "", "strategy params as key=value,...")
	slType := flag.String("sl", "fixed", "stop-loss finder type")
	slParams := flag.String("sl-params", "pct=0.02", "stop-loss params as key=value,...")
	tpType := flag.String("tp", "risk_reward", "take-profit finder type, or none")
	tpParams := flag.String("tp-params", "ratio=2", "take-profit params as key=value,...")
	lookback := flag.Int("lookback", 0, "bars to replay (overrides data.lookback)")
	tradesOut := flag.String("trades", "", "write the trade ledger to this CSV file")
	flag.Parse()

	if *symbol == "" {
		log.Fatal("-symbol is required")
	}

	cfgPath := "config/stratlab.yaml"
	if p := os.Getenv("STRATLAB_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	util.SetDefault(util.NewLogger(cfg.Logging.Level, cfg.Logging.Format))

	tf, err := domain.ParseTimeframe(*timeframe)
	if err != nil {
		log.Fatalf("invalid -timeframe: %v", err)
	}
	job := backtest.Job{Symbol: *symbol, Timeframe: tf, Lookback: cfg.Data.Lookback}
	if *lookback > 0 {
		job.Lookback = *lookback
	}

	if job.Strategy, err = builtins.FromConfig(domain.StrategyConfig{Type: *strat, Params: mustParams(*stratParams)}); err != nil {
		log.Fatalf("invalid strategy: %v", err)
	}
	if job.StopLoss, err = risk.StopLossFromConfig(domain.FinderConfig{Type: *slType, Params: mustParams(*slParams)}); err != nil {
		log.Fatalf("invalid stop loss: %v", err)
	}
	tpCfg := domain.FinderConfig{Type: *tpType}
	if *tpType != "none" {
		tpCfg.Params = mustParams(*tpParams)
	}
	if job.TakeProfit, err = risk.TakeProfitFromConfig(tpCfg); err != nil {
		log.Fatalf("invalid take profit: %v", err)
	}

	fetcher, err := gather.NewFetcher(cfg, store.NewParquetStore(cfg.Storage.DataDir), nil)
	if err != nil {
		log.Fatalf("failed to create fetcher: %v", err)
	}
	bt := backtest.NewBacktester(fetcher, backtest.InstrumentFunc(cfg.Instrument), backtest.Settings{
		InitialCapital: cfg.Risk.AccountSize,
		Compound:       cfg.Risk.Compound,
		RiskFraction:   cfg.Risk.RiskFraction,
		DefaultSize:    cfg.Risk.DefaultSize,
	}, nil)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	slog.Info("running backtest", "key", job.Key(), "lookback", job.Lookback, "source", cfg.Data.Source)
	res, err := bt.Run(ctx, job)
	if err != nil {
		log.Fatalf("backtest failed: %v", err)
	}

	if err := report.RenderSummary(os.Stdout, res); err != nil {
		log.Fatalf("failed to render summary: %v", err)
	}

	if *tradesOut != "" {
		err := report.WriteFile(*tradesOut, func(w io.Writer) error {
			return report.WriteTradesCSV(w, res.Trades)
		})
		if err != nil {
			log.Fatalf("failed to write %s: %v", *tradesOut, err)
		}
		slog.Info("wrote trades", "path", *tradesOut, "trades", len(res.Trades))
	}
}

// mustParams parses "k=v,k=v" into a parameter map.
func mustParams(s string) map[string]float64 {
	params, err := parseParams(s)
	if err != nil {
		log.Fatalf("invalid params %q: %v", s, err)
	}
	return params
}

func parseParams(s string) (map[string]float64, error) {
	params := make(map[string]float64)
	for _, kv := range strings.Split(s, ",") {
		kv = strings.TrimSpace(kv)
		if kv == "" {
			continue
		}
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, fmt.Errorf("expected key=value, got %q", kv)
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("param %s: %w", k, err)
		}
		params[strings.TrimSpace(k)] = f
	}
	return params, nil
}

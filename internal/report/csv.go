package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"stratlab/internal/backtest"
	"stratlab/internal/domain"
)

// ResultColumns is the header of WriteResultsCSV.
var ResultColumns = []string{
	"key", "symbol", "timeframe", "strategy", "stop_loss", "take_profit",
	"total_trades", "win_rate", "total_pnl", "avg_pnl", "sharpe", "max_drawdown",
	"max_consecutive_wins", "max_consecutive_losses", "profit_factor", "final_equity",
}

// TradeColumns is the header of WriteTradesCSV.
var TradeColumns = []string{
	"side", "entry_time", "exit_time", "entry_price", "exit_price",
	"stop_loss", "take_profit", "size", "profit", "reason", "bars_held",
}

// WriteResultsCSV writes one row per result in the given order.
func WriteResultsCSV(w io.Writer, results []*backtest.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ResultColumns); err != nil {
		return err
	}
	for _, r := range results {
		s := r.Summary
		if err := cw.Write([]string{
			r.Key,
			r.Symbol,
			r.Timeframe.String(),
			r.StrategyID,
			r.StopLossID,
			r.TakeProfitID,
			strconv.Itoa(s.TotalTrades),
			csvFloat(s.WinRate),
			csvFloat(s.TotalPnL),
			csvFloat(s.AvgPnL),
			csvFloat(s.Sharpe),
			csvFloat(s.MaxDrawdown),
			strconv.Itoa(s.MaxConsecutiveWins),
			strconv.Itoa(s.MaxConsecutiveLosses),
			csvFloat(s.ProfitFactor),
			csvFloat(s.FinalEquity),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteTradesCSV writes a trade ledger in close order.
func WriteTradesCSV(w io.Writer, trades []domain.TradeRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(TradeColumns); err != nil {
		return err
	}
	for _, t := range trades {
		if err := cw.Write([]string{
			string(t.Side),
			t.EntryTime.UTC().Format(time.RFC3339),
			t.ExitTime.UTC().Format(time.RFC3339),
			csvFloat(t.EntryPrice),
			csvFloat(t.ExitPrice),
			csvFloat(t.StopLoss),
			csvFloat(t.TakeProfit),
			csvFloat(t.Size),
			csvFloat(t.Profit),
			string(t.Reason),
			strconv.Itoa(t.BarsHeld),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile creates path (and its directory) and fills it with write.
func WriteFile(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"stratlab/internal/backtest"
)

// RenderTable prints the first n results (all when n ≤ 0) as a ranked
// console table.
func RenderTable(w io.Writer, results []*backtest.Result, n int) error {
	if n <= 0 || n > len(results) {
		n = len(results)
	}

	table := tablewriter.NewWriter(w)
	table.Header("#", "Symbol", "TF", "Strategy", "Stop", "Target",
		"Trades", "Win", "PnL", "Sharpe", "MaxDD", "PF", "Return")

	for i, r := range results[:n] {
		s := r.Summary
		if err := table.Append(
			strconv.Itoa(i+1),
			r.Symbol,
			r.Timeframe.String(),
			r.StrategyID,
			r.StopLossID,
			r.TakeProfitID,
			FormatInt(s.TotalTrades),
			FormatPct(s.WinRate),
			FormatMoney(s.TotalPnL),
			FormatRatio(s.Sharpe),
			FormatPct(-s.MaxDrawdown),
			FormatRatio(s.ProfitFactor),
			FormatPct(s.TotalReturn),
		); err != nil {
			return err
		}
	}
	return table.Render()
}

// RenderSummary prints the headline statistics of one backtest.
func RenderSummary(w io.Writer, r *backtest.Result) error {
	s := r.Summary
	table := tablewriter.NewWriter(w)
	table.Header("Metric", "Value")

	rows := [][]string{
		{"Key", r.Key},
		{"Bars", FormatInt(r.Bars)},
		{"Trades", fmt.Sprintf("%d (%d W / %d L)", s.TotalTrades, s.Wins, s.Losses)},
		{"Win rate", FormatPct(s.WinRate)},
		{"Total PnL", FormatMoney(s.TotalPnL)},
		{"Avg PnL", FormatMoney(s.AvgPnL)},
		{"Avg win / loss", FormatMoney(s.AvgWin) + " / " + FormatMoney(s.AvgLoss)},
		{"Profit factor", FormatRatio(s.ProfitFactor)},
		{"Sharpe", FormatRatio(s.Sharpe)},
		{"Max drawdown", FormatPct(-s.MaxDrawdown)},
		{"Streaks W / L", fmt.Sprintf("%d / %d", s.MaxConsecutiveWins, s.MaxConsecutiveLosses)},
		{"Final equity", FormatMoney(s.FinalEquity)},
		{"Total return", FormatPct(s.TotalReturn)},
	}
	for _, row := range rows {
		if err := table.Append(row[0], row[1]); err != nil {
			return err
		}
	}
	return table.Render()
}

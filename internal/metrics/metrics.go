// Package metrics aggregates a trade ledger into performance statistics.
package metrics

import (
	"math"

	"stratlab/internal/domain"
)

// Summary holds the performance statistics of one ledger.
type Summary struct {
	TotalTrades int
	Wins        int
	Losses      int
	WinRate     float64

	TotalPnL    float64
	AvgPnL      float64
	GrossProfit float64
	GrossLoss   float64
	AvgWin      float64
	AvgLoss     float64

	// ProfitFactor is GrossProfit / GrossLoss: +Inf with profit and no
	// losses, 0 without trades.
	ProfitFactor float64
	// Sharpe is mean / sample standard deviation of per-trade profit; NaN
	// with fewer than two trades or zero variance.
	Sharpe float64

	// EquityCurve starts at the initial capital and has one point per trade.
	EquityCurve []float64
	// MaxDrawdown is the largest peak-to-trough decline as a fraction of the
	// peak, in [0, 1].
	MaxDrawdown float64

	MaxConsecutiveWins   int
	MaxConsecutiveLosses int

	InitialCapital float64
	FinalEquity    float64
	// TotalReturn is TotalPnL / InitialCapital, 0 when capital is not positive.
	TotalReturn float64
}

// Compute aggregates trades into a Summary. A trade with profit ≤ 0 counts
// as a loss.
func Compute(trades []domain.TradeRecord, initialCapital float64) Summary {
	profits := make([]float64, len(trades))
	for i, t := range trades {
		profits[i] = t.Profit
	}
	return FromProfits(profits, initialCapital)
}

// FromProfits aggregates a sequence of per-trade profits.
func FromProfits(profits []float64, initialCapital float64) Summary {
	s := Summary{
		TotalTrades:    len(profits),
		InitialCapital: initialCapital,
		EquityCurve:    make([]float64, 1, len(profits)+1),
		Sharpe:         math.NaN(),
	}
	s.EquityCurve[0] = initialCapital

	equity, peak := initialCapital, initialCapital
	winRun, lossRun := 0, 0
	for _, p := range profits {
		s.TotalPnL += p
		if p > 0 {
			s.Wins++
			s.GrossProfit += p
			winRun++
			lossRun = 0
		} else {
			s.Losses++
			s.GrossLoss += -p
			lossRun++
			winRun = 0
		}
		s.MaxConsecutiveWins = max(s.MaxConsecutiveWins, winRun)
		s.MaxConsecutiveLosses = max(s.MaxConsecutiveLosses, lossRun)

		equity += p
		s.EquityCurve = append(s.EquityCurve, equity)
		if equity > peak {
			peak = equity
		}
		if peak > 0 {
			s.MaxDrawdown = max(s.MaxDrawdown, (peak-equity)/peak)
		}
	}
	s.MaxDrawdown = math.Min(math.Max(s.MaxDrawdown, 0), 1)
	s.FinalEquity = equity

	if s.TotalTrades == 0 {
		return s
	}

	n := float64(s.TotalTrades)
	s.WinRate = float64(s.Wins) / n
	s.AvgPnL = s.TotalPnL / n
	if s.Wins > 0 {
		s.AvgWin = s.GrossProfit / float64(s.Wins)
	}
	if s.Losses > 0 {
		s.AvgLoss = -s.GrossLoss / float64(s.Losses)
	}

	switch {
	case s.GrossLoss > 0:
		s.ProfitFactor = s.GrossProfit / s.GrossLoss
	case s.GrossProfit > 0:
		s.ProfitFactor = math.Inf(1)
	}

	if s.TotalTrades >= 2 {
		var ss float64
		for _, p := range profits {
			d := p - s.AvgPnL
			ss += d * d
		}
		if std := math.Sqrt(ss / (n - 1)); std > 0 {
			s.Sharpe = s.AvgPnL / std
		}
	}

	if initialCapital > 0 {
		s.TotalReturn = s.TotalPnL / initialCapital
	}
	return s
}

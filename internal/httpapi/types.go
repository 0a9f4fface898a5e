package httpapi

import (
	"math"
	"time"

	"stratlab/internal/store"
)

// RunJSON is the wire form of a screening run.
type RunJSON struct {
	ID           string    `json:"id"`
	StartedAt    time.Time `json:"startedAt"`
	FinishedAt   time.Time `json:"finishedAt"`
	SortBy       string    `json:"sortBy"`
	Combinations int       `json:"combinations"`
}

// ResultJSON is the wire form of a ranked result. Ratios that are NaN or
// infinite encode as null.
type ResultJSON struct {
	Rank       int    `json:"rank"`
	Key        string `json:"key"`
	Symbol     string `json:"symbol"`
	Timeframe  string `json:"timeframe"`
	Strategy   string `json:"strategy"`
	StopLoss   string `json:"stopLoss"`
	TakeProfit string `json:"takeProfit"`

	TotalTrades          int      `json:"totalTrades"`
	WinRate              float64  `json:"winRate"`
	TotalPnL             float64  `json:"totalPnl"`
	AvgPnL               float64  `json:"avgPnl"`
	Sharpe               *float64 `json:"sharpe"`
	MaxDrawdown          float64  `json:"maxDrawdown"`
	MaxConsecutiveWins   int      `json:"maxConsecutiveWins"`
	MaxConsecutiveLosses int      `json:"maxConsecutiveLosses"`
	ProfitFactor         *float64 `json:"profitFactor"`
	FinalEquity          float64  `json:"finalEquity"`
	TotalReturn          float64  `json:"totalReturn"`
}

// RunResultsResponse is returned by GET /api/runs/{id}/results.
type RunResultsResponse struct {
	RunID   string       `json:"runId"`
	Results []ResultJSON `json:"results"`
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func toRunJSON(r store.Run) RunJSON {
	return RunJSON{
		ID:           r.ID,
		StartedAt:    r.StartedAt,
		FinishedAt:   r.FinishedAt,
		SortBy:       r.SortBy,
		Combinations: r.Combinations,
	}
}

func toResultJSON(r store.ResultRecord) ResultJSON {
	return ResultJSON{
		Rank:                 r.Rank,
		Key:                  r.Key,
		Symbol:               r.Symbol,
		Timeframe:            r.Timeframe,
		Strategy:             r.Strategy,
		StopLoss:             r.StopLoss,
		TakeProfit:           r.TakeProfit,
		TotalTrades:          r.TotalTrades,
		WinRate:              r.WinRate,
		TotalPnL:             r.TotalPnL,
		AvgPnL:               r.AvgPnL,
		Sharpe:               finite(r.Sharpe),
		MaxDrawdown:          r.MaxDrawdown,
		MaxConsecutiveWins:   r.MaxConsecutiveWins,
		MaxConsecutiveLosses: r.MaxConsecutiveLosses,
		ProfitFactor:         finite(r.ProfitFactor),
		FinalEquity:          r.FinalEquity,
		TotalReturn:          r.TotalReturn,
	}
}

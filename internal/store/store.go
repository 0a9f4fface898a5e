// Package store defines storage interfaces for cached bar data and
// persisted screening runs.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"stratlab/internal/domain"
)

// ErrNotFound is returned when a requested run does not exist.
var ErrNotFound = errors.New("not found")

// BarStore persists and retrieves OHLCV bar data.
type BarStore interface {
	// WriteBars merges a batch of bars of one timeframe into storage.
	WriteBars(ctx context.Context, tf domain.Timeframe, bars []domain.Bar) error

	// ReadBars returns bars for symbol within [start, end], ordered by time.
	// A zero start or end leaves that side of the range open.
	ReadBars(ctx context.Context, symbol string, tf domain.Timeframe, start, end time.Time) ([]domain.Bar, error)

	// ListSymbols returns all symbols with bars stored for tf.
	ListSymbols(ctx context.Context, tf domain.Timeframe) ([]string, error)
}

// Run identifies one screening run.
type Run struct {
	ID           string
	StartedAt    time.Time
	FinishedAt   time.Time
	SortBy       string
	Combinations int
}

// NewRun creates a Run with a fresh identifier.
func NewRun(sortBy string, startedAt time.Time) Run {
	return Run{
		ID:        uuid.NewString(),
		StartedAt: startedAt.UTC(),
		SortBy:    sortBy,
	}
}

// ResultRecord is the persisted form of one evaluated combination.
type ResultRecord struct {
	Rank       int
	Key        string
	Symbol     string
	Timeframe  string
	Strategy   string
	StopLoss   string
	TakeProfit string

	TotalTrades          int
	WinRate              float64
	TotalPnL             float64
	AvgPnL               float64
	Sharpe               float64
	MaxDrawdown          float64
	MaxConsecutiveWins   int
	MaxConsecutiveLosses int
	ProfitFactor         float64
	FinalEquity          float64
	TotalReturn          float64
}

// ResultStore persists screening runs and their ranked results.
type ResultStore interface {
	// SaveRun stores run and its results in rank order.
	SaveRun(ctx context.Context, run Run, results []ResultRecord) error

	// ListRuns returns the most recent runs, newest first, up to limit.
	ListRuns(ctx context.Context, limit int) ([]Run, error)

	// TopResults returns the best limit results of a run in rank order.
	TopResults(ctx context.Context, runID string, limit int) ([]ResultRecord, error)

	Close() error
}

package postgres

import (
	"context"
	"errors"
	"math"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stratlab/internal/store"
)

// openTestStore connects to STRATLAB_TEST_POSTGRES_DSN or skips.
func openTestStore(t *testing.T) *ResultStore {
	t.Helper()
	dsn := os.Getenv("STRATLAB_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("STRATLAB_TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	s, err := Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = s.pool.Exec(ctx, `TRUNCATE screening_runs CASCADE`)
		_ = s.Close()
	})
	return s
}

func TestResultStoreSaveAndTop(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	run := store.NewRun("total_pnl", time.Now())
	run.FinishedAt = run.StartedAt.Add(time.Second)
	run.Combinations = 2

	results := []store.ResultRecord{
		{Rank: 1, Key: "AAPL|1d|a|b|c", Symbol: "AAPL", Timeframe: "1d", Strategy: "a", StopLoss: "b", TakeProfit: "c",
			TotalTrades: 3, TotalPnL: 50, Sharpe: 1.2, ProfitFactor: math.Inf(1)},
		{Rank: 2, Key: "MSFT|1d|a|b|c", Symbol: "MSFT", Timeframe: "1d", Strategy: "a", StopLoss: "b", TakeProfit: "c",
			TotalPnL: -3, Sharpe: math.NaN()},
	}
	require.NoError(t, s.SaveRun(ctx, run, results))

	runs, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.NotEmpty(t, runs)
	assert.Equal(t, run.ID, runs[0].ID)

	top, err := s.TopResults(ctx, run.ID, 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "AAPL|1d|a|b|c", top[0].Key)
	assert.True(t, math.IsInf(top[0].ProfitFactor, 1))
	assert.True(t, math.IsNaN(top[1].Sharpe))
}

func TestResultStoreUnknownRun(t *testing.T) {
	s := openTestStore(t)
	_, err := s.TopResults(context.Background(), "missing", 5)
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

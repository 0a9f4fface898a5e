package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"stratlab/internal/store"
)

// Compile-time interface check.
var _ store.ResultStore = (*ResultStore)(nil)

// ResultStore implements store.ResultStore using PostgreSQL. DOUBLE
// PRECISION holds NaN and ±Inf natively, so metrics are stored as is.
type ResultStore struct {
	pool *Pool
}

// NewResultStore creates a ResultStore over pool.
func NewResultStore(pool *Pool) *ResultStore {
	return &ResultStore{pool: pool}
}

// Open connects to dsn, applies the schema and returns a ResultStore that
// owns the pool.
func Open(ctx context.Context, dsn string) (*ResultStore, error) {
	pool, err := NewPool(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return NewResultStore(pool), nil
}

// Close closes the connection pool.
func (s *ResultStore) Close() error {
	s.pool.Close()
	return nil
}

// SaveRun inserts run and its results in one transaction.
func (s *ResultStore) SaveRun(ctx context.Context, run store.Run, results []store.ResultRecord) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO screening_runs (id, started_at, finished_at, sort_by, combinations)
		VALUES ($1, $2, $3, $4, $5)`,
		run.ID, run.StartedAt, run.FinishedAt, run.SortBy, run.Combinations,
	); err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}

	batch := &pgx.Batch{}
	for _, r := range results {
		batch.Queue(`
			INSERT INTO screening_results
				(run_id, rank, key, symbol, timeframe, strategy, stop_loss, take_profit,
				 total_trades, win_rate, total_pnl, avg_pnl, sharpe, max_drawdown,
				 max_consecutive_wins, max_consecutive_losses, profit_factor,
				 final_equity, total_return)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
			run.ID, r.Rank, r.Key, r.Symbol, r.Timeframe, r.Strategy, r.StopLoss, r.TakeProfit,
			r.TotalTrades, r.WinRate, r.TotalPnL, r.AvgPnL, r.Sharpe, r.MaxDrawdown,
			r.MaxConsecutiveWins, r.MaxConsecutiveLosses, r.ProfitFactor,
			r.FinalEquity, r.TotalReturn,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert results: %w", err)
	}

	return tx.Commit(ctx)
}

// ListRuns returns the most recent runs, newest first.
func (s *ResultStore) ListRuns(ctx context.Context, limit int) ([]store.Run, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, started_at, finished_at, sort_by, combinations
		FROM screening_runs
		ORDER BY started_at DESC, id ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []store.Run
	for rows.Next() {
		var r store.Run
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.SortBy, &r.Combinations); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt = r.StartedAt.UTC()
		r.FinishedAt = r.FinishedAt.UTC()
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// TopResults returns the best limit results of runID in rank order.
func (s *ResultStore) TopResults(ctx context.Context, runID string, limit int) ([]store.ResultRecord, error) {
	var id string
	if err := s.pool.QueryRow(ctx, `SELECT id FROM screening_runs WHERE id = $1`, runID).Scan(&id); err != nil {
		if isNotFoundError(err) {
			return nil, fmt.Errorf("run %s: %w", runID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT rank, key, symbol, timeframe, strategy, stop_loss, take_profit,
		       total_trades, win_rate, total_pnl, avg_pnl, sharpe, max_drawdown,
		       max_consecutive_wins, max_consecutive_losses, profit_factor,
		       final_equity, total_return
		FROM screening_results
		WHERE run_id = $1
		ORDER BY rank ASC
		LIMIT $2`, runID, limit)
	if err != nil {
		return nil, fmt.Errorf("top results: %w", err)
	}
	defer rows.Close()

	var out []store.ResultRecord
	for rows.Next() {
		var r store.ResultRecord
		if err := rows.Scan(
			&r.Rank, &r.Key, &r.Symbol, &r.Timeframe, &r.Strategy, &r.StopLoss, &r.TakeProfit,
			&r.TotalTrades, &r.WinRate, &r.TotalPnL, &r.AvgPnL, &r.Sharpe, &r.MaxDrawdown,
			&r.MaxConsecutiveWins, &r.MaxConsecutiveLosses, &r.ProfitFactor,
			&r.FinalEquity, &r.TotalReturn,
		); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

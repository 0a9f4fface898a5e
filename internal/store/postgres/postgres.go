// Package postgres implements store.ResultStore on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool wraps pgxpool.Pool for dependency injection.
type Pool struct {
	*pgxpool.Pool
}

// NewPool creates a connection pool and verifies it with a ping.
func NewPool(ctx context.Context, dsn string) (*Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS screening_runs (
    id           TEXT PRIMARY KEY,
    started_at   TIMESTAMPTZ NOT NULL,
    finished_at  TIMESTAMPTZ NOT NULL,
    sort_by      TEXT        NOT NULL,
    combinations INTEGER     NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS screening_results (
    run_id                 TEXT    NOT NULL REFERENCES screening_runs(id) ON DELETE CASCADE,
    rank                   INTEGER NOT NULL,
    key                    TEXT    NOT NULL,
    symbol                 TEXT    NOT NULL,
    timeframe              TEXT    NOT NULL,
    strategy               TEXT    NOT NULL,
    stop_loss              TEXT    NOT NULL,
    take_profit            TEXT    NOT NULL,
    total_trades           INTEGER NOT NULL,
    win_rate               DOUBLE PRECISION NOT NULL,
    total_pnl              DOUBLE PRECISION NOT NULL,
    avg_pnl                DOUBLE PRECISION NOT NULL,
    sharpe                 DOUBLE PRECISION NOT NULL,
    max_drawdown           DOUBLE PRECISION NOT NULL,
    max_consecutive_wins   INTEGER NOT NULL,
    max_consecutive_losses INTEGER NOT NULL,
    profit_factor          DOUBLE PRECISION NOT NULL,
    final_equity           DOUBLE PRECISION NOT NULL,
    total_return           DOUBLE PRECISION NOT NULL,
    PRIMARY KEY (run_id, key)
);

CREATE INDEX IF NOT EXISTS idx_screening_runs_started ON screening_runs(started_at DESC);
CREATE INDEX IF NOT EXISTS idx_screening_results_rank ON screening_results(run_id, rank);
`

// Migrate creates the result tables if they do not exist.
func Migrate(ctx context.Context, pool *Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply postgres schema: %w", err)
	}
	return nil
}

func isNotFoundError(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

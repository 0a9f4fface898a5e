package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var _ ResultStore = (*SQLiteStore)(nil)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS runs (
    id           TEXT PRIMARY KEY,
    started_at   INTEGER NOT NULL,
    finished_at  INTEGER NOT NULL,
    sort_by      TEXT    NOT NULL,
    combinations INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS results (
    run_id                 TEXT    NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    rank                   INTEGER NOT NULL,
    key                    TEXT    NOT NULL,
    symbol                 TEXT    NOT NULL,
    timeframe              TEXT    NOT NULL,
    strategy               TEXT    NOT NULL,
    stop_loss              TEXT    NOT NULL,
    take_profit            TEXT    NOT NULL,
    total_trades           INTEGER NOT NULL,
    win_rate               REAL    NOT NULL,
    total_pnl              REAL    NOT NULL,
    avg_pnl                REAL    NOT NULL,
    sharpe                 REAL,
    max_drawdown           REAL    NOT NULL,
    max_consecutive_wins   INTEGER NOT NULL,
    max_consecutive_losses INTEGER NOT NULL,
    profit_factor          REAL,
    final_equity           REAL    NOT NULL,
    total_return           REAL    NOT NULL,
    PRIMARY KEY (run_id, key)
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC);
CREATE INDEX IF NOT EXISTS idx_results_rank ON results(run_id, rank);
`

// SQLiteStore implements ResultStore backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, applies the
// schema and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dbPath != ":memory:" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating sqlite dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite %q: %w", dbPath, err)
	}
	// SQLite is single-writer.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveRun inserts run and its results in one transaction.
func (s *SQLiteStore) SaveRun(ctx context.Context, run Run, results []ResultRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, finished_at, sort_by, combinations) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.UnixMilli(), run.FinishedAt.UnixMilli(), run.SortBy, run.Combinations,
	); err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO results
			(run_id, rank, key, symbol, timeframe, strategy, stop_loss, take_profit,
			 total_trades, win_rate, total_pnl, avg_pnl, sharpe, max_drawdown,
			 max_consecutive_wins, max_consecutive_losses, profit_factor,
			 final_equity, total_return)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare results insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range results {
		if _, err := stmt.ExecContext(ctx,
			run.ID, r.Rank, r.Key, r.Symbol, r.Timeframe, r.Strategy, r.StopLoss, r.TakeProfit,
			r.TotalTrades, r.WinRate, r.TotalPnL, r.AvgPnL, nullable(r.Sharpe), r.MaxDrawdown,
			r.MaxConsecutiveWins, r.MaxConsecutiveLosses, nullable(r.ProfitFactor),
			r.FinalEquity, r.TotalReturn,
		); err != nil {
			return fmt.Errorf("insert result %s: %w", r.Key, err)
		}
	}
	return tx.Commit()
}

// ListRuns returns the most recent runs, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, sort_by, combinations
		   FROM runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r                 Run
			started, finished int64
		)
		if err := rows.Scan(&r.ID, &started, &finished, &r.SortBy, &r.Combinations); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt = time.UnixMilli(started).UTC()
		r.FinishedAt = time.UnixMilli(finished).UTC()
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// TopResults returns the best limit results of runID in rank order.
// ErrNotFound is returned for an unknown run.
func (s *SQLiteStore) TopResults(ctx context.Context, runID string, limit int) ([]ResultRecord, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM runs WHERE id = ?`, runID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query run %s: %w", runID, err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT rank, key, symbol, timeframe, strategy, stop_loss, take_profit,
		       total_trades, win_rate, total_pnl, avg_pnl, sharpe, max_drawdown,
		       max_consecutive_wins, max_consecutive_losses, profit_factor,
		       final_equity, total_return
		  FROM results WHERE run_id = ? ORDER BY rank LIMIT ?`, runID, limit)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	var out []ResultRecord
	for rows.Next() {
		var (
			r              ResultRecord
			sharpe, factor sql.NullFloat64
		)
		if err := rows.Scan(
			&r.Rank, &r.Key, &r.Symbol, &r.Timeframe, &r.Strategy, &r.StopLoss, &r.TakeProfit,
			&r.TotalTrades, &r.WinRate, &r.TotalPnL, &r.AvgPnL, &sharpe, &r.MaxDrawdown,
			&r.MaxConsecutiveWins, &r.MaxConsecutiveLosses, &factor,
			&r.FinalEquity, &r.TotalReturn,
		); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		r.Sharpe = fromNullable(sharpe)
		r.ProfitFactor = fromNullable(factor)
		out = append(out, r)
	}
	return out, rows.Err()
}

// nullable maps NaN to SQL NULL; SQLite has no NaN.
func nullable(v float64) any {
	if math.IsNaN(v) {
		return nil
	}
	return v
}

func fromNullable(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

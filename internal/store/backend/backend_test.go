package backend

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"stratlab/internal/config"
	"stratlab/internal/store"
)

func TestOpenResults(t *testing.T) {
	ctx := context.Background()

	rs, err := OpenResults(ctx, config.Storage{Results: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "nested", "r.db")})
	if err != nil {
		t.Fatalf("OpenResults(sqlite): %v", err)
	}
	if _, ok := rs.(*store.SQLiteStore); !ok {
		t.Errorf("OpenResults(sqlite) = %T, want *store.SQLiteStore", rs)
	}
	rs.Close()

	if _, err := OpenResults(ctx, config.Storage{Results: "none"}); !errors.Is(err, ErrDisabled) {
		t.Errorf("OpenResults(none) error = %v, want ErrDisabled", err)
	}
	if _, err := OpenResults(ctx, config.Storage{Results: "postgres"}); err == nil {
		t.Error("OpenResults(postgres) without DSN should fail")
	}
	if _, err := OpenResults(ctx, config.Storage{Results: "redis"}); err == nil {
		t.Error("OpenResults(redis) should fail")
	}
}

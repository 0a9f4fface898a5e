// Package backend opens the result store selected by configuration.
package backend

import (
	"context"
	"errors"
	"fmt"

	"stratlab/internal/config"
	"stratlab/internal/store"
	"stratlab/internal/store/postgres"
)

// ErrDisabled is returned when storage.results is "none".
var ErrDisabled = errors.New("result storage disabled")

// OpenResults opens the sqlite or postgres result store named by
// s.Results.
func OpenResults(ctx context.Context, s config.Storage) (store.ResultStore, error) {
	switch s.Results {
	case "none":
		return nil, ErrDisabled
	case "postgres":
		if s.PostgresDSN == "" {
			return nil, errors.New("storage.results is postgres but no DSN is configured")
		}
		return postgres.Open(ctx, s.PostgresDSN)
	case "sqlite", "":
		return store.NewSQLiteStore(s.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown result backend %q", s.Results)
	}
}

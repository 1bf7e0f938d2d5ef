// Package storage persists finished runs and their step history.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pthm-cable/wildfire/telemetry"
)

// ErrNotInitialized is returned by stores used before Init.
var ErrNotInitialized = errors.New("store is not initialized")

// Run describes one simulation run.
type Run struct {
	ID        string
	Seed      int64
	Size      int
	Steps     int
	CreatedAt time.Time
	Config    []byte // YAML snapshot of the run configuration
	Summary   telemetry.Summary
}

// Store saves runs and their history rows.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run Run) error
	GetRun(ctx context.Context, id string) (Run, bool, error)
	ListRuns(ctx context.Context) ([]Run, error)
	SaveHistory(ctx context.Context, runID string, records []telemetry.Record) error
	GetHistory(ctx context.Context, runID string) ([]telemetry.Record, error)
	Close() error
}

// NewStore returns an uninitialised store for backend kind. An empty kind
// or "none" returns a nil store. "memory" lives only as long as the process
// and is meant for tests and long-lived embedders such as serve.
func NewStore(kind, sqlitePath string) (Store, error) {
	switch kind {
	case "", "none":
		return nil, nil
	case "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		if sqlitePath == "" {
			return nil, errors.New("sqlite path is required")
		}
		return NewSQLiteStore(sqlitePath), nil
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", kind)
	}
}

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pthm-cable/wildfire/telemetry"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists runs to a single SQLite file.
type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}

	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

func (s *SQLiteStore) SaveRun(ctx context.Context, run Run) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	summary, err := json.Marshal(run.Summary)
	if err != nil {
		return fmt.Errorf("encode summary %s: %w", run.ID, err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO runs (id, seed, size, steps, created_at, config, summary)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			seed = excluded.seed,
			size = excluded.size,
			steps = excluded.steps,
			created_at = excluded.created_at,
			config = excluded.config,
			summary = excluded.summary
	`, run.ID, run.Seed, run.Size, run.Steps, run.CreatedAt.UnixNano(), run.Config, summary)
	return err
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		run     Run
		created int64
		summary []byte
	)
	if err := sc.Scan(&run.ID, &run.Seed, &run.Size, &run.Steps, &created, &run.Config, &summary); err != nil {
		return Run{}, err
	}
	run.CreatedAt = time.Unix(0, created).UTC()
	if err := json.Unmarshal(summary, &run.Summary); err != nil {
		return Run{}, fmt.Errorf("decode summary %s: %w", run.ID, err)
	}
	return run, nil
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (Run, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return Run{}, false, err
	}

	row := db.QueryRowContext(ctx, `
		SELECT id, seed, size, steps, created_at, config, summary
		FROM runs WHERE id = ?
	`, id)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, false, nil
		}
		return Run{}, false, err
	}
	return run, true, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context) ([]Run, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, seed, size, steps, created_at, config, summary
		FROM runs ORDER BY created_at, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// SaveHistory appends records after any rows already stored for runID.
func (s *SQLiteStore) SaveHistory(ctx context.Context, runID string, records []telemetry.Record) error {
	if len(records) == 0 {
		return nil
	}
	db, err := s.getDB()
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var next int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq) + 1, 0) FROM history WHERE run_id = ?`, runID,
	).Scan(&next); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO history (run_id, seq, step, burning, tree, empty)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, r := range records {
		if _, err := stmt.ExecContext(ctx, runID, next+i, r.Step, r.Burning, r.Tree, r.Empty); err != nil {
			return fmt.Errorf("insert history row %d: %w", next+i, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) GetHistory(ctx context.Context, runID string) ([]telemetry.Record, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT step, burning, tree, empty FROM history
		WHERE run_id = ? ORDER BY seq
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []telemetry.Record{}
	for rows.Next() {
		var r telemetry.Record
		if err := rows.Scan(&r.Step, &r.Burning, &r.Tree, &r.Empty); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, ErrNotInitialized
	}
	return s.db, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			seed INTEGER NOT NULL,
			size INTEGER NOT NULL,
			steps INTEGER NOT NULL,
			created_at INTEGER NOT NULL,
			config BLOB,
			summary BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS history (
			run_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			step INTEGER NOT NULL,
			burning INTEGER NOT NULL,
			tree INTEGER NOT NULL,
			empty INTEGER NOT NULL,
			PRIMARY KEY (run_id, seq)
		);
	`)
	return err
}

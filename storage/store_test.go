package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/pthm-cable/wildfire/telemetry"
)

// backends returns one initialised store per implementation.
func backends(t *testing.T) map[string]Store {
	t.Helper()
	ctx := context.Background()

	mem := NewMemoryStore()
	if err := mem.Init(ctx); err != nil {
		t.Fatalf("memory init: %v", err)
	}

	lite := NewSQLiteStore(filepath.Join(t.TempDir(), "wildfire.db"))
	if err := lite.Init(ctx); err != nil {
		t.Fatalf("sqlite init: %v", err)
	}
	t.Cleanup(func() {
		_ = lite.Close()
	})

	return map[string]Store{"memory": mem, "sqlite": lite}
}

func TestStoreRunRoundTrip(t *testing.T) {
	ctx := context.Background()
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			run := Run{
				ID:        "run-a",
				Seed:      42,
				Size:      64,
				Steps:     100,
				CreatedAt: created,
				Config:    []byte("forest:\n  size: 64\n"),
				Summary:   telemetry.Summary{Steps: 100, BurningMean: 3.5, BurningPeak: 12, PeakStep: 40},
			}
			if err := store.SaveRun(ctx, run); err != nil {
				t.Fatalf("save run: %v", err)
			}

			got, ok, err := store.GetRun(ctx, "run-a")
			if err != nil || !ok {
				t.Fatalf("get run: ok=%v err=%v", ok, err)
			}
			if got.Seed != 42 || got.Size != 64 || got.Steps != 100 || !got.CreatedAt.Equal(created) {
				t.Errorf("run = %+v", got)
			}
			if got.Summary != run.Summary {
				t.Errorf("summary = %+v, want %+v", got.Summary, run.Summary)
			}
			if string(got.Config) != string(run.Config) {
				t.Errorf("config = %q", got.Config)
			}

			// Upsert replaces the row.
			run.Steps = 200
			if err := store.SaveRun(ctx, run); err != nil {
				t.Fatal(err)
			}
			got, _, _ = store.GetRun(ctx, "run-a")
			if got.Steps != 200 {
				t.Errorf("steps after upsert = %d", got.Steps)
			}

			if _, ok, err := store.GetRun(ctx, "missing"); ok || err != nil {
				t.Errorf("missing run: ok=%v err=%v", ok, err)
			}

			later := run
			later.ID = "run-b"
			later.CreatedAt = created.Add(time.Hour)
			if err := store.SaveRun(ctx, later); err != nil {
				t.Fatal(err)
			}
			runs, err := store.ListRuns(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if len(runs) != 2 || runs[0].ID != "run-a" || runs[1].ID != "run-b" {
				t.Errorf("list = %+v", runs)
			}
		})
	}
}

func TestStoreHistoryAppends(t *testing.T) {
	ctx := context.Background()

	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			first := []telemetry.Record{{Step: 1, Burning: 2, Tree: 3, Empty: 4}, {Step: 2, Burning: 5, Tree: 1, Empty: 4}}
			second := []telemetry.Record{{Step: 2, Burning: 0, Tree: 6, Empty: 4}}

			if err := store.SaveHistory(ctx, "r", first); err != nil {
				t.Fatal(err)
			}
			if err := store.SaveHistory(ctx, "r", second); err != nil {
				t.Fatal(err)
			}
			if err := store.SaveHistory(ctx, "other", []telemetry.Record{{Step: 9}}); err != nil {
				t.Fatal(err)
			}

			got, err := store.GetHistory(ctx, "r")
			if err != nil {
				t.Fatal(err)
			}
			want := append(append([]telemetry.Record{}, first...), second...)
			if len(got) != len(want) {
				t.Fatalf("len = %d, want %d", len(got), len(want))
			}
			for i := range want {
				if got[i] != want[i] {
					t.Errorf("row %d = %+v, want %+v", i, got[i], want[i])
				}
			}

			empty, err := store.GetHistory(ctx, "nobody")
			if err != nil || len(empty) != 0 {
				t.Errorf("unknown run history = %+v, %v", empty, err)
			}
		})
	}
}

func TestStoreRequiresInit(t *testing.T) {
	ctx := context.Background()
	stores := []Store{NewMemoryStore(), NewSQLiteStore(filepath.Join(t.TempDir(), "x.db"))}
	for _, s := range stores {
		if err := s.SaveRun(ctx, Run{ID: "a"}); !errors.Is(err, ErrNotInitialized) {
			t.Errorf("%T: SaveRun before Init = %v", s, err)
		}
	}
}

func TestNewStore(t *testing.T) {
	tests := []struct {
		kind    string
		path    string
		wantNil bool
		wantErr bool
	}{
		{"", "", true, false},
		{"none", "", true, false},
		{"memory", "", false, false},
		{"sqlite", "x.db", false, false},
		{"sqlite", "", true, true},
		{"postgres", "", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.kind+"/"+tt.path, func(t *testing.T) {
			s, err := NewStore(tt.kind, tt.path)
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v", err)
			}
			if (s == nil) != tt.wantNil {
				t.Errorf("store = %v", s)
			}
		})
	}
}

//go:build sqlite

package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"gaugehmc/internal/model"
	"gaugehmc/internal/params"
)

func openSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	store := NewSQLiteStore(filepath.Join(t.TempDir(), "gaugehmc.db"))
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func TestSQLiteStoreRunRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openSQLite(t)

	run := model.Run{
		VersionedRecord: Versioned(),
		ID:              "r1",
		CreatedAt:       time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC),
		Status:          model.RunRunning,
		Lengths:         [4]int{4, 4, 4, 8},
		Actions:         []string{"plaquette_rotating", "fermion_staggered"},
	}
	if err := store.SaveRun(ctx, run); err != nil {
		t.Fatalf("save run: %v", err)
	}
	run.Status = model.RunFinished
	if err := store.SaveRun(ctx, run); err != nil {
		t.Fatalf("update run: %v", err)
	}

	loaded, ok, err := store.GetRun(ctx, "r1")
	if err != nil || !ok {
		t.Fatalf("get run: ok=%v err=%v", ok, err)
	}
	if loaded.Status != model.RunFinished || len(loaded.Actions) != 2 || !loaded.CreatedAt.Equal(run.CreatedAt) {
		t.Fatalf("unexpected run: %+v", loaded)
	}

	runs, err := store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected one run, got %d", len(runs))
	}
}

func TestSQLiteStoreTrajectoriesAndMeasurements(t *testing.T) {
	ctx := context.Background()
	store := openSQLite(t)

	batch := []model.Trajectory{
		{VersionedRecord: Versioned(), RunID: "r1", Index: 1, Accepted: true, DeltaH: 0.02},
		{VersionedRecord: Versioned(), RunID: "r1", Index: 0, Accepted: false, DeltaH: 1.5},
	}
	if err := store.AppendTrajectories(ctx, "r1", batch); err != nil {
		t.Fatalf("append: %v", err)
	}
	out, ok, err := store.GetTrajectories(ctx, "r1")
	if err != nil || !ok {
		t.Fatalf("get trajectories: ok=%v err=%v", ok, err)
	}
	if len(out) != 2 || out[0].Index != 0 || out[1].DeltaH != 0.02 {
		t.Fatalf("unexpected trajectories: %+v", out)
	}

	ms := []model.Measurement{{VersionedRecord: Versioned(), RunID: "r1", ID: 2, Name: "angular_momentum", Values: []float64{0.01, -0.02}}}
	if err := store.SaveMeasurements(ctx, "r1", ms); err != nil {
		t.Fatalf("save measurements: %v", err)
	}
	loaded, ok, err := store.GetMeasurements(ctx, "r1")
	if err != nil || !ok {
		t.Fatalf("get measurements: ok=%v err=%v", ok, err)
	}
	if loaded[0].Name != "angular_momentum" || loaded[0].Values[1] != -0.02 {
		t.Fatalf("unexpected measurements: %+v", loaded)
	}
}

func TestSQLiteStoreConfiguration(t *testing.T) {
	ctx := context.Background()
	store := openSQLite(t)

	cfg := model.Configuration{VersionedRecord: Versioned(), RunID: "r1", Configuration: 5, Lengths: [4]int{2, 2, 2, 2}, Links: []float64{1, 0, 0.5}}
	if err := store.SaveConfiguration(ctx, cfg); err != nil {
		t.Fatalf("save configuration: %v", err)
	}
	got, ok, err := store.GetConfiguration(ctx, "r1")
	if err != nil || !ok {
		t.Fatalf("get configuration: ok=%v err=%v", ok, err)
	}
	if got.Configuration != 5 || got.Links[2] != 0.5 {
		t.Fatalf("unexpected configuration: %+v", got)
	}
}

func TestNewStoreSQLite(t *testing.T) {
	store, err := NewStore(params.StoreRecord{Kind: "sqlite", Path: filepath.Join(t.TempDir(), "x.db")})
	if err != nil {
		t.Fatalf("new sqlite store: %v", err)
	}
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := CloseIfSupported(store); err != nil {
		t.Fatalf("close: %v", err)
	}
}

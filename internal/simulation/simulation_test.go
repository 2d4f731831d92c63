package simulation

import (
	"context"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gaugehmc/internal/action"
	"gaugehmc/internal/lattice"
	"gaugehmc/internal/model"
	"gaugehmc/internal/params"
	"gaugehmc/internal/stats"
	"gaugehmc/internal/storage"
	"gaugehmc/internal/su3"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRecord(l int, boundary string, omega float64, equilibration, measured int) params.RunRecord {
	return params.ConvertRun(map[string]any{
		"lattice": map[string]any{
			"lengths":  []any{l, l, l, l},
			"boundary": boundary,
			"workers":  4,
		},
		"actions": []any{
			map[string]any{"name": "plaquette_rotating", "beta": 3.0, "omega": omega},
		},
		"integrator": map[string]any{"name": "omelyan", "length": 1.0, "steps": 10},
		"updater": map[string]any{
			"seed":          7,
			"equilibration": equilibration,
			"measured":      measured,
		},
		"measurements": []any{
			map[string]any{"name": "plaquette_energy"},
			map[string]any{"name": "angular_momentum"},
		},
	})
}

func newSimulation(t *testing.T, artifactsDir string) *Simulation {
	t.Helper()
	sim := New(Config{Store: storage.NewMemoryStore(), ArtifactsDir: artifactsDir, Logger: quietLogger()})
	require.NoError(t, sim.Init(context.Background()))
	return sim
}

func TestBuildRejectsBadConfiguration(t *testing.T) {
	rec := testRecord(2, "torus", 0, 0, 0)
	rec.Actions[0].Name = "missing"
	_, err := Build(rec, quietLogger())
	require.ErrorIs(t, err, action.ErrActionNotFound)

	rec = testRecord(2, "torus", 0, 0, 0)
	rec.Updater.InitState = "lukewarm"
	_, err = Build(rec, quietLogger())
	require.ErrorIs(t, err, ErrInitState)

	rec = testRecord(2, "torus", 0, 0, 0)
	rec.Actions = append(rec.Actions, rec.Actions[0])
	_, err = Build(rec, quietLogger())
	require.ErrorIs(t, err, action.ErrBadParameter)

	rec = testRecord(2, "torus", 0, 0, 0)
	rec.Lattice.Lengths = [4]int{4, 4, 1, 4}
	_, err = Build(rec, quietLogger())
	require.ErrorIs(t, err, lattice.ErrBadLength)
}

func TestBuildPinsFermionDirichletDirections(t *testing.T) {
	rec := testRecord(4, "torus_dirichlet", 0, 0, 0)
	dev, err := Build(rec, quietLogger())
	require.NoError(t, err)
	codes := dev.Lattice.BC.Codes(lattice.FermionFieldID)
	assert.Equal(t, lattice.Codes{lattice.Dirichlet, lattice.Dirichlet, lattice.Periodic, lattice.Antiperiodic}, codes)
	assert.Len(t, dev.Measurements, 2)
}

func TestRunPersistsRecordsAndArtifacts(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	sim := newSimulation(t, dir)

	res, err := sim.Run(ctx, RunRequest{RunID: "run-a", Record: testRecord(2, "torus", 0.05, 2, 4), SaveConfiguration: true})
	require.NoError(t, err)
	require.Equal(t, "run-a", res.RunID)
	require.Equal(t, 6, res.Summary.Trajectories)
	require.Len(t, res.Measurements, 2)
	require.Empty(t, sim.ActiveRuns())

	run, ok, err := sim.Store().GetRun(ctx, "run-a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, model.RunFinished, run.Status)
	assert.Equal(t, []string{"plaquette_rotating"}, run.Actions)
	assert.Equal(t, "omelyan", run.Integrator)

	trajectories, ok, err := sim.Store().GetTrajectories(ctx, "run-a")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, trajectories, 6)
	assert.False(t, trajectories[0].Measured)
	assert.True(t, trajectories[5].Measured)

	ms, ok, err := sim.Store().GetMeasurements(ctx, "run-a")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, ms, 2)

	cfg, ok, err := sim.Store().GetConfiguration(ctx, "run-a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, run.Configurations, cfg.Configuration)

	index, err := stats.ListRunIndex(dir)
	require.NoError(t, err)
	require.Len(t, index, 1)
	assert.Equal(t, "run-a", index[0].RunID)

	series, ok, err := stats.ReadTrajectorySeries(dir, "run-a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, series, 6)
}

func TestRunResumesFromStoredConfiguration(t *testing.T) {
	ctx := context.Background()
	sim := newSimulation(t, "")

	first, err := sim.Run(ctx, RunRequest{RunID: "first", Record: testRecord(2, "torus", 0, 0, 3), SaveConfiguration: true})
	require.NoError(t, err)

	second, err := sim.Run(ctx, RunRequest{RunID: "second", Record: testRecord(2, "torus", 0, 0, 2), ResumeFrom: "first"})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, second.Summary.Configurations, first.Summary.Configurations)

	_, err = sim.Run(ctx, RunRequest{RunID: "third", Record: testRecord(2, "torus", 0, 0, 1), ResumeFrom: "missing"})
	require.ErrorIs(t, err, ErrNoStoredRun)

	_, err = sim.Run(ctx, RunRequest{RunID: "fourth", Record: testRecord(3, "torus", 0, 0, 1), ResumeFrom: "first"})
	require.ErrorIs(t, err, ErrStoredLattice)
}

func TestCancelledRunIsStoredAsFailed(t *testing.T) {
	sim := newSimulation(t, "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := sim.Run(ctx, RunRequest{RunID: "cancelled", Record: testRecord(2, "torus", 0, 1, 1)})
	require.ErrorIs(t, err, context.Canceled)

	run, ok, err := sim.Store().GetRun(context.Background(), "cancelled")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, model.RunFailed, run.Status)
	assert.NotEmpty(t, run.Error)
}

func TestRunRequiresInit(t *testing.T) {
	sim := New(Config{Store: storage.NewMemoryStore(), Logger: quietLogger()})
	_, err := sim.Run(context.Background(), RunRequest{Record: testRecord(2, "torus", 0, 0, 1)})
	require.ErrorIs(t, err, ErrNotStarted)
	require.False(t, sim.Stop("nothing"))
}

func TestSweepRunsEveryValue(t *testing.T) {
	dir := t.TempDir()
	sim := newSimulation(t, dir)
	rec := testRecord(2, "torus", 0, 0, 2)

	sw, err := sim.Sweep(context.Background(), SweepRequest{
		SweepID:   "omega-scan",
		Record:    rec,
		ActionID:  1,
		Parameter: "omega",
		Values:    []float64{0, 0.05},
	})
	require.NoError(t, err)
	require.Len(t, sw.Points, 2)
	assert.NotEqual(t, sw.Points[0].RunID, sw.Points[1].RunID)
	assert.Equal(t, 0.0, rec.Actions[0].Params.Float("omega", -1), "sweep mutated the caller's record")

	stored, ok, err := stats.ReadSweep(dir, "omega-scan")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []float64{0, 0.05}, stored.Values)

	_, err = sim.Sweep(context.Background(), SweepRequest{Record: rec, ActionID: 9, Parameter: "omega", Values: []float64{1}})
	require.ErrorIs(t, err, ErrSweepAction)
}

func TestDirichletBoundaryLinksStayFixed(t *testing.T) {
	rec := testRecord(4, "torus_dirichlet", 0.1, 0, 0)
	rec.Updater.InitState = "identity"
	dev, err := Build(rec, quietLogger())
	require.NoError(t, err)

	require.NoError(t, dev.Updater.Update(context.Background(), 3, true))
	for link := range dev.Gauge.Links {
		if dev.Lattice.IsFixedLink(link) {
			require.Equal(t, su3.Identity(), dev.Gauge.Links[link], "link %d", link)
		}
	}
	assert.Greater(t, dev.Updater.AcceptanceRate(), 0.5)
}

func TestRunCountsAcceptedConfigurations(t *testing.T) {
	sim := newSimulation(t, "")
	rec := testRecord(2, "torus", 0, 2, 3)
	rec.Updater.CountConfigurations = true
	res, err := sim.Run(context.Background(), RunRequest{Record: rec})
	require.NoError(t, err)

	assert.Equal(t, 3, res.Summary.Configurations)
	assert.GreaterOrEqual(t, res.Summary.Trajectories, 5)
	for _, m := range res.Measurements {
		assert.Equal(t, 3, m.Summary.Count, m.Name)
	}
}

// Rotating action at zero angular velocity: 5 equilibrated and 200 measured
// configurations, the acceptance stays high and the gauge angular momentum
// averages to zero.
func TestRotatingAtZeroOmegaReproducesVanishingAngularMomentum(t *testing.T) {
	if testing.Short() {
		t.Skip("long HMC run")
	}
	sim := newSimulation(t, "")
	rec := testRecord(4, "torus", 0, 5, 200)
	rec.Updater.CountConfigurations = true
	res, err := sim.Run(context.Background(), RunRequest{Record: rec})
	require.NoError(t, err)
	require.Equal(t, 200, res.Summary.Configurations)

	require.GreaterOrEqual(t, res.Summary.AcceptanceRate, 0.9)
	require.InDelta(t, 1.0, res.Summary.ExpHDiff, 0.1)

	var jg stats.MeasurementEntry
	for _, m := range res.Measurements {
		if m.Name == "angular_momentum" {
			jg = m
		}
	}
	require.Equal(t, 200, jg.Summary.Count)
	require.LessOrEqual(t, math.Abs(jg.Summary.Mean), 5*jg.Summary.Error+1e-9,
		"J_G=%g +- %g", jg.Summary.Mean, jg.Summary.Error)
}

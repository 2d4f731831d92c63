package hmc

import (
	"context"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gaugehmc/internal/action"
	"gaugehmc/internal/field"
	"gaugehmc/internal/integrator"
	"gaugehmc/internal/lattice"
	"gaugehmc/internal/parallel"
	"gaugehmc/internal/params"
	"gaugehmc/internal/random"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func testEnv(t *testing.T, l int, seed int64) action.Env {
	t.Helper()
	lat, err := lattice.New(lattice.Config{Lengths: [lattice.Dim]int{l, l, l, l}}, lattice.NewTorus())
	require.NoError(t, err)
	return action.Env{Lattice: lat, Engine: parallel.New(2), Source: random.New(seed)}
}

// stubIntegrator applies a fixed transformation instead of real dynamics.
type stubIntegrator struct {
	evolve func(g *field.Gauge, p *field.Lie)
}

func (s stubIntegrator) Name() string              { return "stub" }
func (s stubIntegrator) Config() integrator.Config { return integrator.Config{} }
func (s stubIntegrator) Evaluate(_ context.Context, g *field.Gauge, p *field.Lie) error {
	if s.evolve != nil {
		s.evolve(g, p)
	}
	return nil
}

func newUpdater(t *testing.T, env action.Env, integ integrator.Integrator) (*Updater, *action.Plaquette) {
	t.Helper()
	a := action.NewPlaquette(env, 1, 5)
	g := field.NewGauge(env.Lattice)
	g.InitRandom(env.Source)
	u, err := New(Config{
		Gauge:      g,
		Actions:    []action.Action{a},
		Integrator: integ,
		Engine:     env.Engine,
		Source:     env.Source,
		Logger:     quiet,
	})
	require.NoError(t, err)
	return u, a
}

type countingHook struct{ n int }

func (h *countingHook) OnConfigurationAccepted(*field.Gauge) error {
	h.n++
	return nil
}

func TestRejectRestoresFieldBitIdentically(t *testing.T) {
	env := testEnv(t, 2, 1)
	u, _ := newUpdater(t, env, stubIntegrator{evolve: func(g *field.Gauge, p *field.Lie) {
		g.Evolve(env.Engine, p, 0.3)
		for i := range p.M {
			p.M[i] = p.M[i].Scale(10)
		}
	}})
	before := u.Gauge().Clone()

	rec, err := u.Trajectory(context.Background(), true)
	require.NoError(t, err)
	assert.False(t, rec.Accepted)
	assert.Greater(t, rec.DeltaH, 100.0)
	assert.True(t, u.Gauge().Equal(before))
	assert.Equal(t, 0, u.GetConfigurationCount())
	assert.Equal(t, 1, u.Trajectories())
	assert.Equal(t, StateIdle, u.State())
	assert.Equal(t, rec.DeltaH, u.GetLastHDiff())
}

func TestForceAccept(t *testing.T) {
	env := testEnv(t, 2, 2)
	u, _ := newUpdater(t, env, stubIntegrator{evolve: func(_ *field.Gauge, p *field.Lie) {
		for i := range p.M {
			p.M[i] = p.M[i].Scale(10)
		}
	}})
	u.SetForceAccept(true)
	rec, err := u.Trajectory(context.Background(), false)
	require.NoError(t, err)
	assert.True(t, rec.Accepted)
	assert.True(t, rec.Forced)
	assert.Equal(t, 1, u.GetConfigurationCount())
	assert.Equal(t, 1.0, u.AcceptanceRate())
}

func TestAutoCorrectionAcceptsAnyDeltaH(t *testing.T) {
	env := testEnv(t, 2, 2)
	u, _ := newUpdater(t, env, stubIntegrator{evolve: func(g *field.Gauge, p *field.Lie) {
		g.Evolve(env.Engine, p, 0.3)
		for i := range p.M {
			p.M[i] = p.M[i].Scale(10)
		}
	}})
	u.SetAutoCorrection(true)
	moved := u.Gauge().Clone()

	rec, err := u.Trajectory(context.Background(), true)
	require.NoError(t, err)
	assert.Greater(t, rec.DeltaH, 100.0)
	assert.True(t, rec.Accepted)
	assert.True(t, rec.Forced)
	assert.False(t, u.Gauge().Equal(moved))
	assert.Equal(t, 1, u.GetConfigurationCount())

	u.SetAutoCorrection(false)
	rec, err = u.Trajectory(context.Background(), true)
	require.NoError(t, err)
	assert.False(t, rec.Accepted)
	assert.Equal(t, 1, u.GetConfigurationCount())
}

func TestReunitarizeKeepsLinksInSU3(t *testing.T) {
	env := testEnv(t, 2, 9)
	u, _ := newUpdater(t, env, stubIntegrator{evolve: func(g *field.Gauge, _ *field.Lie) {
		for i := range g.Links {
			g.Links[i] = g.Links[i].Scale(1 + 1e-6)
		}
	}})
	u.SetForceAccept(true)
	u.SetReunitarize(true)
	_, err := u.Trajectory(context.Background(), false)
	require.NoError(t, err)
	for _, m := range u.Gauge().Links {
		assert.InDelta(t, 1.0, real(m.Det()), 1e-12)
		assert.InDelta(t, 0.0, imag(m.Det()), 1e-12)
	}
}

func TestUpdateUntilCountsConfigurations(t *testing.T) {
	env := testEnv(t, 2, 10)
	flip := 0
	u, _ := newUpdater(t, env, stubIntegrator{evolve: func(_ *field.Gauge, p *field.Lie) {
		flip++
		if flip%2 == 0 {
			for i := range p.M {
				p.M[i] = p.M[i].Scale(10)
			}
		}
	}})
	u.SetConfigurationCount(7)

	require.NoError(t, u.UpdateUntil(context.Background(), 3, false, 0))
	assert.Equal(t, 3, u.GetConfigurationCount())
	assert.Equal(t, 5, u.Trajectories())

	err := u.UpdateUntil(context.Background(), 5, false, 2)
	require.ErrorIs(t, err, ErrTrajectoryLimit)
	assert.Equal(t, 1, u.GetConfigurationCount())
}

func TestNonFiniteEnergyAbortsAndRestores(t *testing.T) {
	env := testEnv(t, 2, 3)
	u, _ := newUpdater(t, env, stubIntegrator{evolve: func(g *field.Gauge, _ *field.Lie) {
		g.Links[5][0][0] = complex(math.NaN(), 0)
	}})
	before := u.Gauge().Clone()

	_, err := u.Trajectory(context.Background(), true)
	require.ErrorIs(t, err, ErrNonFiniteEnergy)
	require.ErrorIs(t, err, action.ErrNonFiniteEnergy)
	assert.True(t, u.Gauge().Equal(before))
	assert.Equal(t, StateIdle, u.State())
	assert.Equal(t, 0, u.Trajectories())
}

func TestHooksOnlySeeMeasuredTrajectories(t *testing.T) {
	env := testEnv(t, 2, 4)
	u, _ := newUpdater(t, env, stubIntegrator{})
	hook := &countingHook{}
	u.AddHook(hook)
	var seen []TrajectoryRecord
	u.AddObserver(ObserverFunc(func(rec TrajectoryRecord) { seen = append(seen, rec) }))

	require.NoError(t, u.Update(context.Background(), 3, false))
	assert.Equal(t, 0, hook.n)
	require.NoError(t, u.Update(context.Background(), 2, true))
	assert.Equal(t, 2, hook.n)

	require.Len(t, seen, 5)
	for i, rec := range seen {
		assert.Equal(t, i, rec.Trajectory)
		assert.True(t, rec.Accepted)
		assert.InDelta(t, 0, rec.DeltaH, 1e-9)
		assert.Equal(t, i+1, rec.Configuration)
	}
	assert.Equal(t, 5, u.GetConfigurationCount())
	u.SetConfigurationCount(0)
	assert.Equal(t, 0, u.GetConfigurationCount())
}

func TestSetTestHdiffRestartsStatistics(t *testing.T) {
	env := testEnv(t, 2, 5)
	u, _ := newUpdater(t, env, stubIntegrator{evolve: func(g *field.Gauge, p *field.Lie) {
		g.Evolve(env.Engine, p, 0.05)
	}})
	require.NoError(t, u.Update(context.Background(), 2, false))
	require.NotZero(t, u.GetHDiff())

	u.SetTestHdiff(true)
	assert.Zero(t, u.GetHDiff())
	require.NoError(t, u.Update(context.Background(), 1, true))
	assert.InDelta(t, math.Abs(u.GetLastHDiff()), u.GetHDiff(), 1e-15)
}

func TestCachedEnergyTracksCommittedField(t *testing.T) {
	env := testEnv(t, 3, 6)
	a := action.NewPlaquette(env, 1, 5)
	forces := integrator.NewForces(env.Engine, []action.Action{a})
	integ, err := integrator.New(env.Engine, params.IntegratorRecord{Name: "omelyan", Length: 0.5, Steps: 5}, forces)
	require.NoError(t, err)

	g := field.NewGauge(env.Lattice)
	g.InitRandom(env.Source)
	u, err := New(Config{Gauge: g, Actions: []action.Action{a}, Integrator: integ, Engine: env.Engine, Source: env.Source, Logger: quiet, Reunitarize: true})
	require.NoError(t, err)

	fresh := action.NewPlaquette(env, 2, 5)
	for i := 0; i < 4; i++ {
		require.NoError(t, u.Update(context.Background(), 1, false))
		cached, err := a.Energy(true, g)
		require.NoError(t, err)
		want, err := fresh.Energy(false, g)
		require.NoError(t, err)
		assert.InDelta(t, want, cached, 1e-9*math.Abs(want))
	}
}

func TestExpDeltaHAveragesToOne(t *testing.T) {
	if testing.Short() {
		t.Skip("statistical test")
	}
	env := testEnv(t, 3, 7)
	a := action.NewPlaquette(env, 1, 5)
	forces := integrator.NewForces(env.Engine, []action.Action{a})
	integ, err := integrator.New(env.Engine, params.IntegratorRecord{Name: "omelyan", Length: 1, Steps: 10}, forces)
	require.NoError(t, err)
	u, err := New(Config{
		Gauge:      field.NewGauge(env.Lattice),
		Actions:    []action.Action{a},
		Integrator: integ,
		Engine:     env.Engine,
		Source:     env.Source,
		Logger:     quiet,
	})
	require.NoError(t, err)

	require.NoError(t, u.Update(context.Background(), 10, false))
	u.SetTestHdiff(true)
	require.NoError(t, u.Update(context.Background(), 40, true))
	assert.InDelta(t, 1, u.ExpHDiff(), 0.05)
	assert.Less(t, u.GetHDiff(), 0.2)
	assert.GreaterOrEqual(t, u.AcceptanceRate(), 0.8)
}

func TestSameSeedReproducesTrajectories(t *testing.T) {
	run := func() *field.Gauge {
		env := testEnv(t, 2, 8)
		a := action.NewPlaquette(env, 1, 5)
		integ, err := integrator.New(env.Engine, params.IntegratorRecord{Name: "leapfrog", Length: 0.5, Steps: 4},
			integrator.NewForces(env.Engine, []action.Action{a}))
		require.NoError(t, err)
		u, err := New(Config{Gauge: field.NewGauge(env.Lattice), Actions: []action.Action{a}, Integrator: integ, Engine: env.Engine, Source: env.Source, Logger: quiet})
		require.NoError(t, err)
		require.NoError(t, u.Update(context.Background(), 3, false))
		return u.Gauge()
	}
	assert.True(t, run().Equal(run()))
}

func TestNewValidates(t *testing.T) {
	env := testEnv(t, 2, 9)
	_, err := New(Config{Gauge: field.NewGauge(env.Lattice), Integrator: stubIntegrator{}, Engine: env.Engine, Source: env.Source})
	require.ErrorIs(t, err, ErrNoActions)
	assert.Equal(t, "momentum_refresh", StateMomentumRefresh.String())
}

func TestUpdateHonoursCancellation(t *testing.T) {
	env := testEnv(t, 2, 10)
	u, _ := newUpdater(t, env, stubIntegrator{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, u.Update(ctx, 2, false), context.Canceled)
	assert.Equal(t, 0, u.Trajectories())
}

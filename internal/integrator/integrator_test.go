package integrator

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gaugehmc/internal/action"
	"gaugehmc/internal/field"
	"gaugehmc/internal/lattice"
	"gaugehmc/internal/parallel"
	"gaugehmc/internal/params"
	"gaugehmc/internal/random"
	"gaugehmc/internal/su3"
)

type fixture struct {
	env     action.Env
	actions []action.Action
	forces  *Forces
}

func newFixture(t *testing.T, l int, bc lattice.BoundaryCondition, withFermion bool) fixture {
	t.Helper()
	if bc == nil {
		bc = lattice.NewTorus()
	}
	codes := bc.Codes(lattice.GaugeFieldID)
	codes[3] = lattice.Antiperiodic
	require.NoError(t, bc.SetFieldBC(lattice.FermionFieldID, codes))
	lat, err := lattice.New(lattice.Config{Lengths: [lattice.Dim]int{l, l, l, l}}, bc, lattice.FermionFieldID)
	require.NoError(t, err)
	env := action.Env{Lattice: lat, Engine: parallel.New(2), Source: random.New(7)}

	acts := []action.Action{action.NewRotating(env, 1, 5, 0.1)}
	if withFermion {
		f, err := action.New(env, params.ActionRecord{
			Name:   "fermion_staggered",
			ID:     2,
			Params: params.Record{"mass": 0.5, "tolerance": 1e-12},
		})
		require.NoError(t, err)
		acts = append(acts, f)
	}
	return fixture{env: env, actions: acts, forces: NewForces(env.Engine, acts)}
}

func (f fixture) start(t *testing.T) (*field.Gauge, *field.Lie) {
	t.Helper()
	g := field.NewGauge(f.env.Lattice)
	g.InitRandom(f.env.Source)
	for _, a := range f.actions {
		require.NoError(t, a.PrepareForHMC(g, 0))
	}
	p := field.NewLie(f.env.Lattice)
	p.Gaussian(f.env.Source)
	return g, p
}

func (f fixture) hamiltonian(t *testing.T, g *field.Gauge, p *field.Lie) float64 {
	t.Helper()
	h := p.Kinetic(f.env.Engine)
	for _, a := range f.actions {
		e, err := a.Energy(false, g)
		require.NoError(t, err)
		h += e
	}
	return h
}

func build(t *testing.T, f fixture, name string, length float64, steps int) Integrator {
	t.Helper()
	in, err := New(f.env.Engine, params.IntegratorRecord{Name: name, Length: length, Steps: steps, NestedSteps: 3}, f.forces)
	require.NoError(t, err)
	return in
}

func maxLinkDiff(a, b *field.Gauge) float64 {
	d := 0.0
	for i := range a.Links {
		d = math.Max(d, a.Links[i].MaxAbsDiff(b.Links[i]))
	}
	return d
}

func TestSchemesAreReversible(t *testing.T) {
	for _, name := range ListIntegrators() {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, 3, nil, false)
			g, p := f.start(t)
			g0, p0 := g.Clone(), p.Clone()

			in := build(t, f, name, 0.5, 5)
			require.NoError(t, in.Evaluate(context.Background(), g, p))
			assert.Greater(t, maxLinkDiff(g, g0), 1e-3)

			p.Negate()
			require.NoError(t, in.Evaluate(context.Background(), g, p))
			p.Negate()

			assert.Less(t, maxLinkDiff(g, g0), 1e-10)
			for i := range p.M {
				require.Less(t, p.M[i].MaxAbsDiff(p0.M[i]), 1e-9)
			}
		})
	}
}

func TestNestedSchemesAreReversibleWithFermions(t *testing.T) {
	for _, name := range []string{"nested_leapfrog", "nested_omelyan", "nested_force_gradient"} {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, 2, nil, true)
			g, p := f.start(t)
			g0 := g.Clone()

			in := build(t, f, name, 0.3, 3)
			require.NoError(t, in.Evaluate(context.Background(), g, p))
			p.Negate()
			require.NoError(t, in.Evaluate(context.Background(), g, p))
			assert.Less(t, maxLinkDiff(g, g0), 1e-8)
		})
	}
}

func energyError(t *testing.T, name string, steps int) float64 {
	t.Helper()
	f := newFixture(t, 3, nil, false)
	g, p := f.start(t)
	h0 := f.hamiltonian(t, g, p)
	require.NoError(t, build(t, f, name, 0.4, steps).Evaluate(context.Background(), g, p))
	return math.Abs(f.hamiltonian(t, g, p) - h0)
}

func TestEnergyErrorShrinksWithStepSize(t *testing.T) {
	for _, name := range []string{"leapfrog", "omelyan"} {
		t.Run(name, func(t *testing.T) {
			coarse := energyError(t, name, 16)
			fine := energyError(t, name, 32)
			ratio := coarse / fine
			assert.Greater(t, ratio, 3.0, "coarse=%g fine=%g", coarse, fine)
			assert.Less(t, ratio, 5.0, "coarse=%g fine=%g", coarse, fine)
		})
	}
	t.Run("force_gradient", func(t *testing.T) {
		coarse := energyError(t, "force_gradient", 16)
		fine := energyError(t, "force_gradient", 32)
		assert.Greater(t, coarse/fine, 3.0, "coarse=%g fine=%g", coarse, fine)
	})
}

func TestOmelyanBeatsLeapfrog(t *testing.T) {
	assert.Less(t, energyError(t, "omelyan", 16), energyError(t, "leapfrog", 16))
}

func TestNestedWithoutFermionsMatchesFineLeapfrog(t *testing.T) {
	f := newFixture(t, 3, nil, false)
	g1, p1 := f.start(t)
	g2, p2 := g1.Clone(), p1.Clone()

	require.NoError(t, build(t, f, "nested_leapfrog", 0.6, 4).Evaluate(context.Background(), g1, p1))
	require.NoError(t, build(t, f, "leapfrog", 0.6, 12).Evaluate(context.Background(), g2, p2))
	assert.Less(t, maxLinkDiff(g1, g2), 1e-12)
}

func TestFixedLinksStayIdentity(t *testing.T) {
	f := newFixture(t, 4, lattice.NewTorusDirichlet(), false)
	g, p := f.start(t)
	require.NoError(t, build(t, f, "omelyan", 0.5, 5).Evaluate(context.Background(), g, p))
	lat := f.env.Lattice
	for link := 0; link < lat.LinkCount(); link++ {
		if lat.IsFixedLink(link) {
			require.Equal(t, su3.Identity(), g.Links[link])
			require.Zero(t, p.M[link].Norm2())
		}
	}
}

func TestEvaluateStopsOnCancelledContext(t *testing.T) {
	f := newFixture(t, 2, nil, false)
	g, p := f.start(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := build(t, f, "leapfrog", 1, 4).Evaluate(ctx, g, p)
	require.ErrorIs(t, err, context.Canceled)
}

type phaseRecorder struct {
	phases  []action.Phase
	fermion bool
}

func (r *phaseRecorder) ID() int         { return 9 }
func (r *phaseRecorder) Name() string    { return "recorder" }
func (r *phaseRecorder) IsFermion() bool { return r.fermion }
func (r *phaseRecorder) Energy(bool, *field.Gauge) (float64, error) {
	return 0, nil
}
func (r *phaseRecorder) CalculateForceOnGauge(_ *field.Gauge, _ *field.Lie, phase action.Phase) error {
	r.phases = append(r.phases, phase)
	return nil
}
func (r *phaseRecorder) PrepareForHMC(*field.Gauge, int) error { return nil }
func (r *phaseRecorder) OnFinishTrajectory(bool)               {}

func TestPhaseTags(t *testing.T) {
	f := newFixture(t, 2, nil, false)
	rec := &phaseRecorder{}
	forces := NewForces(f.env.Engine, []action.Action{rec})
	in, err := New(f.env.Engine, params.IntegratorRecord{Name: "force_gradient", Length: 1, Steps: 2}, forces)
	require.NoError(t, err)
	g, p := f.start(t)
	require.NoError(t, in.Evaluate(context.Background(), g, p))

	require.Len(t, rec.phases, 2*4)
	assert.Equal(t, action.PhaseStartTrajectory, rec.phases[0])
	assert.Equal(t, action.PhaseEndTrajectory, rec.phases[len(rec.phases)-1])
	assert.Equal(t, action.PhaseForceGradient, rec.phases[2])
	assert.Equal(t, action.PhaseInTrajectory, rec.phases[1])
}

func TestNestedLevelsSplitForces(t *testing.T) {
	f := newFixture(t, 2, nil, false)
	gauge := &phaseRecorder{}
	ferm := &phaseRecorder{fermion: true}
	forces := NewForces(f.env.Engine, []action.Action{gauge, ferm})
	assert.Len(t, forces.Actions(LevelAll), 2)

	in, err := New(f.env.Engine, params.IntegratorRecord{Name: "nested_leapfrog", Length: 1, Steps: 2, NestedSteps: 3}, forces)
	require.NoError(t, err)
	g, p := f.start(t)
	require.NoError(t, in.Evaluate(context.Background(), g, p))

	assert.Len(t, ferm.phases, 2*2)
	assert.Len(t, gauge.phases, 2*3*2)
	assert.Equal(t, action.PhaseEndTrajectory, ferm.phases[len(ferm.phases)-1])
}

func TestRegistry(t *testing.T) {
	t.Cleanup(resetIntegratorRegistryForTests)
	f := newFixture(t, 2, nil, false)

	_, err := New(f.env.Engine, params.IntegratorRecord{Name: "verlet", Length: 1, Steps: 1}, f.forces)
	require.ErrorIs(t, err, ErrIntegratorNotFound)

	_, err = New(f.env.Engine, params.IntegratorRecord{Name: "omelyan", Length: 1, Steps: 0}, f.forces)
	require.ErrorIs(t, err, ErrBadConfig)

	_, err = New(f.env.Engine, params.IntegratorRecord{Name: "nested_omelyan", Length: 1, Steps: 2}, f.forces)
	require.ErrorIs(t, err, ErrBadConfig)

	require.ErrorIs(t, RegisterIntegrator("leapfrog", builtinIntegrators()["leapfrog"]), ErrIntegratorExists)
	require.NoError(t, RegisterIntegrator("custom", builtinIntegrators()["omelyan"]))
	assert.Contains(t, ListIntegrators(), "custom")

	in, err := New(f.env.Engine, params.IntegratorRecord{Name: "omelyan", Length: 1, Steps: 4}, f.forces)
	require.NoError(t, err)
	assert.Equal(t, params.OmelyanLambda, in.Config().Lambda)
	assert.InDelta(t, 0.25, in.Config().StepSize(), 1e-15)
}

package action

import (
	"fmt"
	"math"

	"gaugehmc/internal/fermion"
	"gaugehmc/internal/field"
	"gaugehmc/internal/lattice"
	"gaugehmc/internal/params"
)

// PseudoFermion samples det(D^+ D) with K pseudo-fermion fields:
// E = 1/K sum_k phi_k^+ (D^+ D)^-1 phi_k, phi_k = sqrt(K) D^+ eta_k.
// The Dirac operator and its solver are pluggable.
type PseudoFermion struct {
	id     int
	name   string
	env    Env
	op     fermion.Operator
	solver fermion.Solver

	phi   []*field.Fermion
	cache energyCache
}

func NewPseudoFermion(env Env, id int, name string, op fermion.Operator, solver fermion.Solver, fields int) (*PseudoFermion, error) {
	if fields < 1 {
		return nil, fmt.Errorf("%w: pseudo-fermion field count %d", ErrBadParameter, fields)
	}
	a := &PseudoFermion{id: id, name: name, env: env, op: op, solver: solver}
	for k := 0; k < fields; k++ {
		a.phi = append(a.phi, field.NewFermion(env.Lattice, op.Spin()))
	}
	return a, nil
}

func fermionFromRecord(env Env, rec params.ActionRecord, name string, op fermion.Operator) (Action, error) {
	if !env.Lattice.Index.HasMoveIndex(lattice.FermionFieldID) {
		return nil, fmt.Errorf("%w: fermion field tables were not baked", ErrStaleBake)
	}
	cg := fermion.NewCG(env.Engine, rec.Params.Float("tolerance", 1e-10), rec.Params.Int("max_iter", 1000))
	return NewPseudoFermion(env, rec.ID, name, op, cg, rec.Params.Int("fields", 1))
}

func NewStaggeredFermionFromRecord(env Env, rec params.ActionRecord) (Action, error) {
	mass := rec.Params.Float("mass", 0.5)
	if mass <= 0 {
		return nil, fmt.Errorf("%w: mass=%g", ErrBadParameter, mass)
	}
	op := fermion.NewStaggered(env.Lattice, env.Engine, lattice.FermionFieldID, mass)
	return fermionFromRecord(env, rec, "fermion_staggered", op)
}

func NewWilsonFermionFromRecord(env Env, rec params.ActionRecord) (Action, error) {
	kappa := rec.Params.Float("kappa", 0.1)
	if kappa <= 0 {
		return nil, fmt.Errorf("%w: kappa=%g", ErrBadParameter, kappa)
	}
	op := fermion.NewWilson(env.Lattice, env.Engine, lattice.FermionFieldID, kappa)
	return fermionFromRecord(env, rec, "fermion_wilson", op)
}

func (a *PseudoFermion) ID() int         { return a.id }
func (a *PseudoFermion) Name() string    { return a.name }
func (a *PseudoFermion) IsFermion() bool { return true }
func (a *PseudoFermion) FieldCount() int { return len(a.phi) }

// PrepareForHMC draws fresh pseudo-fermions. The starting energy is exactly
// sum_k |eta_k|^2, so no inversion is needed.
func (a *PseudoFermion) PrepareForHMC(gauge *field.Gauge, _ int) error {
	if err := checkGauge(a.env, gauge); err != nil {
		return err
	}
	eng := a.env.Engine
	scale := complex(math.Sqrt(float64(len(a.phi))), 0)
	eta := field.NewFermion(a.env.Lattice, a.op.Spin())
	e := 0.0
	for _, phi := range a.phi {
		eta.Gaussian(a.env.Source)
		e += eta.Norm2(eng)
		a.op.Apply(phi, eta, gauge, true)
		phi.Scale(eng, scale)
	}
	a.cache.invalidate()
	a.cache.last, a.cache.lastValid = e, true
	return nil
}

func (a *PseudoFermion) solve(gauge *field.Gauge, phi *field.Fermion) (*field.Fermion, error) {
	x := field.NewFermion(a.env.Lattice, a.op.Spin())
	if _, err := a.solver.Solve(x, phi, gauge, a.op); err != nil {
		return nil, err
	}
	return x, nil
}

func (a *PseudoFermion) Energy(beforeEvolution bool, gauge *field.Gauge) (float64, error) {
	if err := checkGauge(a.env, gauge); err != nil {
		return 0, err
	}
	compute := func() (float64, error) {
		e := 0.0
		for _, phi := range a.phi {
			x, err := a.solve(gauge, phi)
			if err != nil {
				return 0, err
			}
			e += real(phi.Dot(a.env.Engine, x))
		}
		return finiteEnergy(e / float64(len(a.phi)))
	}
	if beforeEvolution {
		return a.cache.before(compute)
	}
	return a.cache.after(compute)
}

func (a *PseudoFermion) CalculateForceOnGauge(gauge *field.Gauge, force *field.Lie, _ Phase) error {
	if err := checkGauge(a.env, gauge); err != nil {
		return err
	}
	coeff := 1 / float64(len(a.phi))
	y := field.NewFermion(a.env.Lattice, a.op.Spin())
	for _, phi := range a.phi {
		x, err := a.solve(gauge, phi)
		if err != nil {
			return err
		}
		a.op.Apply(y, x, gauge, false)
		if err := a.op.AddForce(force, x, y, gauge, coeff); err != nil {
			return err
		}
	}
	if !force.IsFinite() {
		return ErrNonFiniteForce
	}
	return nil
}

func (a *PseudoFermion) OnFinishTrajectory(accepted bool) { a.cache.finish(accepted) }

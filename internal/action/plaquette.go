package action

import (
	"fmt"

	"gaugehmc/internal/field"
	"gaugehmc/internal/params"
	"gaugehmc/internal/su3"
)

// Plaquette is the Wilson gauge action E = beta/3 sum_p (3 - Re Tr U_p).
type Plaquette struct {
	id     int
	beta   float64
	clover bool
	env    Env
	w      *weightedPlaquettes
	cache  energyCache
}

func NewPlaquette(env Env, id int, beta float64) *Plaquette {
	a := &Plaquette{id: id, beta: beta, env: env}
	a.w = newWeightedPlaquettes(env.Lattice, env.Engine, a.siteWeight)
	return a
}

func NewPlaquetteFromRecord(env Env, rec params.ActionRecord) (Action, error) {
	beta := rec.Params.Float("beta", 5)
	if beta <= 0 {
		return nil, fmt.Errorf("%w: beta=%g", ErrBadParameter, beta)
	}
	a := NewPlaquette(env, rec.ID, beta)
	a.clover = rec.Params.Bool("clover_energy", false)
	return a, nil
}

func (a *Plaquette) siteWeight(_, _, _ int) float64 { return a.beta }

func (a *Plaquette) ID() int         { return a.id }
func (a *Plaquette) Name() string    { return "plaquette" }
func (a *Plaquette) IsFermion() bool { return false }
func (a *Plaquette) Beta() float64   { return a.beta }

func (a *Plaquette) SetBeta(beta float64) {
	a.beta = beta
	a.w.reweight(a.siteWeight)
	a.cache.invalidate()
}

func (a *Plaquette) Energy(beforeEvolution bool, gauge *field.Gauge) (float64, error) {
	if err := checkGauge(a.env, gauge); err != nil {
		return 0, err
	}
	compute := func() (float64, error) {
		if a.clover {
			return finiteEnergy(a.w.cloverEnergy(gauge))
		}
		return finiteEnergy(a.w.energy(gauge))
	}
	if beforeEvolution {
		return a.cache.before(compute)
	}
	return a.cache.after(compute)
}

func (a *Plaquette) CalculateForceOnGauge(gauge *field.Gauge, force *field.Lie, _ Phase) error {
	if err := checkGauge(a.env, gauge); err != nil {
		return err
	}
	return addForce(a.env, gauge, force, func(link int) su3.Matrix {
		return a.w.staple(gauge, link)
	})
}

func (a *Plaquette) PrepareForHMC(gauge *field.Gauge, iterate int) error {
	if iterate == 0 {
		a.cache.invalidate()
	}
	_, err := a.Energy(true, gauge)
	return err
}

func (a *Plaquette) OnFinishTrajectory(accepted bool) { a.cache.finish(accepted) }

// addForce adds F = -1/6 TA(U S) on every evolving link, where the action
// depends on U through -1/3 Re Tr(U S).
func addForce(env Env, gauge *field.Gauge, force *field.Lie, staple func(link int) su3.Matrix) error {
	lat := env.Lattice
	return env.Engine.For(lat.LinkCount(), func(lo, hi int) error {
		for link := lo; link < hi; link++ {
			if lat.IsFixedLink(link) {
				continue
			}
			f := gauge.Links[link].Mul(staple(link)).TA().Scale(-1.0 / 6)
			if !f.IsFinite() {
				return fmt.Errorf("%w: link=%d", ErrNonFiniteForce, link)
			}
			force.M[link] = force.M[link].Add(f)
		}
		return nil
	})
}

package action

import (
	"fmt"

	"gaugehmc/internal/field"
	"gaugehmc/internal/lattice"
	"gaugehmc/internal/params"
	"gaugehmc/internal/su3"
)

// BetaGradient is the plaquette action with a coupling that varies along one
// direction. Each plaquette sees the average beta of its four corners.
type BetaGradient struct {
	id     int
	dir    int
	betas  []float64
	clover bool
	env    Env
	w      *weightedPlaquettes
	cache  energyCache
}

func NewBetaGradient(env Env, id, dir int, betas []float64) (*BetaGradient, error) {
	if dir < 0 || dir >= lattice.Dim {
		return nil, fmt.Errorf("%w: gradient direction %d", ErrBadParameter, dir)
	}
	a := &BetaGradient{id: id, dir: dir, env: env}
	if err := a.SetBeta(betas); err != nil {
		return nil, err
	}
	return a, nil
}

func NewBetaGradientFromRecord(env Env, rec params.ActionRecord) (Action, error) {
	dir := rec.Params.Int("direction", 2)
	betas, ok := rec.Params.Floats("betas")
	if !ok {
		beta := rec.Params.Float("beta", 5)
		if dir < 0 || dir >= lattice.Dim {
			return nil, fmt.Errorf("%w: gradient direction %d", ErrBadParameter, dir)
		}
		betas = make([]float64, env.Lattice.Config.Lengths[dir])
		for i := range betas {
			betas[i] = beta
		}
	}
	a, err := NewBetaGradient(env, rec.ID, dir, betas)
	if err != nil {
		return nil, err
	}
	a.clover = rec.Params.Bool("clover_energy", false)
	return a, nil
}

func (a *BetaGradient) ID() int         { return a.id }
func (a *BetaGradient) Name() string    { return "plaquette_beta_gradient" }
func (a *BetaGradient) IsFermion() bool { return false }

// SetBeta replaces the coupling profile. Its length must equal the extent of
// the gradient direction.
func (a *BetaGradient) SetBeta(betas []float64) error {
	if want := a.env.Lattice.Config.Lengths[a.dir]; len(betas) != want {
		return fmt.Errorf("%w: got %d want %d", ErrBetaArrayLength, len(betas), want)
	}
	a.betas = append([]float64(nil), betas...)
	if a.w == nil {
		a.w = newWeightedPlaquettes(a.env.Lattice, a.env.Engine, a.siteWeight)
	} else {
		a.w.reweight(a.siteWeight)
	}
	a.cache.invalidate()
	return nil
}

func (a *BetaGradient) siteWeight(site, _, _ int) float64 {
	return a.betas[a.env.Lattice.Index.Coord(site)[a.dir]]
}

func (a *BetaGradient) Energy(beforeEvolution bool, gauge *field.Gauge) (float64, error) {
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

func (a *BetaGradient) CalculateForceOnGauge(gauge *field.Gauge, force *field.Lie, _ Phase) error {
	if err := checkGauge(a.env, gauge); err != nil {
		return err
	}
	return addForce(a.env, gauge, force, func(link int) su3.Matrix {
		return a.w.staple(gauge, link)
	})
}

func (a *BetaGradient) PrepareForHMC(gauge *field.Gauge, iterate int) error {
	if iterate == 0 {
		a.cache.invalidate()
	}
	_, err := a.Energy(true, gauge)
	return err
}

func (a *BetaGradient) OnFinishTrajectory(accepted bool) { a.cache.finish(accepted) }

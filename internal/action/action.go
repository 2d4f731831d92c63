// Package action defines the gauge and fermion actions sampled by HMC. Every
// action reports its energy on a gauge field and adds its force, the negative
// algebra-projected derivative of the energy, into a shared force field.
package action

import (
	"errors"
	"math"

	"gaugehmc/internal/field"
	"gaugehmc/internal/lattice"
	"gaugehmc/internal/parallel"
	"gaugehmc/internal/random"
)

var (
	ErrNonFiniteForce  = errors.New("action: non-finite force")
	ErrNonFiniteEnergy = errors.New("action: non-finite energy")
	ErrStaleBake       = errors.New("action: gauge field does not match the baked lattice tables")
	ErrBetaArrayLength = errors.New("action: beta array length does not match the gradient direction")
	ErrBadParameter    = errors.New("action: bad parameter")
)

// Phase tags a force evaluation with its place in a trajectory.
type Phase int

const (
	PhaseStartTrajectory Phase = iota
	PhaseInTrajectory
	// PhaseForceGradient marks the evaluation on the shifted field of a force-gradient step.
	PhaseForceGradient
	PhaseEndTrajectory
	PhaseOnce
)

func (p Phase) String() string {
	switch p {
	case PhaseStartTrajectory:
		return "start"
	case PhaseInTrajectory:
		return "in_trajectory"
	case PhaseForceGradient:
		return "force_gradient"
	case PhaseEndTrajectory:
		return "end"
	case PhaseOnce:
		return "once"
	default:
		return "unknown"
	}
}

// Action is one term of the total action.
type Action interface {
	ID() int
	Name() string
	IsFermion() bool
	// Energy returns the cached pre-trajectory energy when beforeEvolution is
	// set and otherwise evaluates the trial energy of gauge.
	Energy(beforeEvolution bool, gauge *field.Gauge) (float64, error)
	// CalculateForceOnGauge adds this action's force into force.
	CalculateForceOnGauge(gauge *field.Gauge, force *field.Lie, phase Phase) error
	// PrepareForHMC runs before each trajectory; iterate counts trajectories.
	PrepareForHMC(gauge *field.Gauge, iterate int) error
	OnFinishTrajectory(accepted bool)
}

// Env is the shared run context handed to action constructors.
type Env struct {
	Lattice *lattice.Lattice
	Engine  *parallel.Engine
	Source  random.Source
}

// energyCache keeps the committed energy of the current configuration and
// the trial energy of the last evolved field.
type energyCache struct {
	last       float64
	lastValid  bool
	trial      float64
	trialValid bool
}

func (c *energyCache) before(compute func() (float64, error)) (float64, error) {
	if c.lastValid {
		return c.last, nil
	}
	e, err := compute()
	if err != nil {
		return 0, err
	}
	c.last, c.lastValid = e, true
	return e, nil
}

func (c *energyCache) after(compute func() (float64, error)) (float64, error) {
	e, err := compute()
	if err != nil {
		return 0, err
	}
	c.trial, c.trialValid = e, true
	return e, nil
}

func (c *energyCache) finish(accepted bool) {
	if accepted {
		c.last, c.lastValid = c.trial, c.trialValid
	}
	c.trialValid = false
}

func (c *energyCache) invalidate() {
	c.lastValid = false
	c.trialValid = false
}

func checkGauge(env Env, gauge *field.Gauge) error {
	if len(gauge.Links) != env.Lattice.LinkCount() {
		return ErrStaleBake
	}
	return nil
}

func finiteEnergy(e float64) (float64, error) {
	if math.IsNaN(e) || math.IsInf(e, 0) {
		return 0, ErrNonFiniteEnergy
	}
	return e, nil
}

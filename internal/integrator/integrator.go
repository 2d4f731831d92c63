// Package integrator evolves a (gauge, momentum) pair along a molecular
// dynamics trajectory with reversible, area-preserving splitting schemes.
package integrator

import (
	"context"
	"errors"
	"fmt"

	"gaugehmc/internal/action"
	"gaugehmc/internal/field"
	"gaugehmc/internal/parallel"
)

var (
	ErrBadConfig = errors.New("integrator: bad configuration")
)

// Config fixes the trajectory length and the step counts.
type Config struct {
	Length float64
	Steps  int
	// NestedSteps is the number of inner gauge steps per outer step.
	NestedSteps int
	Lambda      float64
}

func (c Config) StepSize() float64 { return c.Length / float64(c.Steps) }

func (c Config) validate(nested bool) error {
	if c.Length <= 0 {
		return fmt.Errorf("%w: length=%g", ErrBadConfig, c.Length)
	}
	if c.Steps <= 0 {
		return fmt.Errorf("%w: steps=%d", ErrBadConfig, c.Steps)
	}
	if nested && c.NestedSteps <= 0 {
		return fmt.Errorf("%w: nested_steps=%d", ErrBadConfig, c.NestedSteps)
	}
	if c.Lambda <= 0 || c.Lambda >= 0.5 {
		return fmt.Errorf("%w: lambda=%g", ErrBadConfig, c.Lambda)
	}
	return nil
}

type Integrator interface {
	Name() string
	Config() Config
	// Evaluate runs one trajectory, updating gauge and momentum in place.
	Evaluate(ctx context.Context, gauge *field.Gauge, momentum *field.Lie) error
}

// drift evolves the links, or runs a finer integrator, for a time eps.
type drift func(eps float64) error

// scheme is one symmetric step of a splitting scheme at a force level.
type scheme struct {
	name   string
	drifts int
	step   func(k *kicker, level Level, eps float64, d drift) error
}

func leapfrog() scheme {
	return scheme{name: "leapfrog", drifts: 1, step: func(k *kicker, lv Level, eps float64, d drift) error {
		if err := k.kick(lv, eps/2); err != nil {
			return err
		}
		if err := d(eps); err != nil {
			return err
		}
		return k.kick(lv, eps/2)
	}}
}

func omelyan(lambda float64) scheme {
	return scheme{name: "omelyan", drifts: 2, step: func(k *kicker, lv Level, eps float64, d drift) error {
		if err := k.kick(lv, lambda*eps); err != nil {
			return err
		}
		if err := d(eps / 2); err != nil {
			return err
		}
		if err := k.kick(lv, (1-2*lambda)*eps); err != nil {
			return err
		}
		if err := d(eps / 2); err != nil {
			return err
		}
		return k.kick(lv, lambda*eps)
	}}
}

// forceGradient is the Omelyan-Mryglod-Folk step whose middle kick reads the
// force on the field shifted by exp(eps^2/24 F).
func forceGradient() scheme {
	return scheme{name: "force_gradient", drifts: 2, step: func(k *kicker, lv Level, eps float64, d drift) error {
		if err := k.kick(lv, eps/6); err != nil {
			return err
		}
		if err := d(eps / 2); err != nil {
			return err
		}
		if err := k.gradientKick(lv, 2*eps/3, eps*eps/24); err != nil {
			return err
		}
		if err := d(eps / 2); err != nil {
			return err
		}
		return k.kick(lv, eps/6)
	}}
}

// kicker owns the scratch fields of one trajectory.
type kicker struct {
	eng    *parallel.Engine
	forces *Forces
	gauge  *field.Gauge
	p      *field.Lie
	force  *field.Lie
	saved  *field.Gauge

	outer       Level
	phase       action.Phase
	outerDrifts int
	evaluations int
}

func (k *kicker) nextPhase(lv Level) action.Phase {
	ph := k.phase
	if lv == k.outer && k.outerDrifts == 0 {
		ph = action.PhaseEndTrajectory
	}
	k.phase = action.PhaseInTrajectory
	return ph
}

func (k *kicker) kick(lv Level, eps float64) error {
	if k.forces.Empty(lv) {
		return nil
	}
	if err := k.forces.Evaluate(lv, k.gauge, k.force, k.nextPhase(lv)); err != nil {
		return err
	}
	k.evaluations++
	k.p.AddScaled(k.eng, k.force, eps)
	return nil
}

func (k *kicker) gradientKick(lv Level, eps, shift float64) error {
	if k.forces.Empty(lv) {
		return nil
	}
	if err := k.forces.Evaluate(lv, k.gauge, k.force, k.nextPhase(lv)); err != nil {
		return err
	}
	if k.saved == nil {
		k.saved = k.gauge.Clone()
	} else if err := k.saved.CopyFrom(k.gauge); err != nil {
		return err
	}
	k.gauge.Evolve(k.eng, k.force, shift)
	err := k.forces.Evaluate(lv, k.gauge, k.force, action.PhaseForceGradient)
	if cerr := k.gauge.CopyFrom(k.saved); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	k.evaluations += 2
	k.p.AddScaled(k.eng, k.force, eps)
	return nil
}

// splitting runs Steps outer steps of one scheme. When inner is set, the
// outer level kicks with the fermion force and every drift runs NestedSteps
// inner steps on the gauge force.
type splitting struct {
	name   string
	cfg    Config
	forces *Forces
	eng    *parallel.Engine
	outer  scheme
	inner  *scheme

	lastEvaluations int
}

func (s *splitting) Name() string   { return s.name }
func (s *splitting) Config() Config { return s.cfg }

// ForceEvaluations is the number of force evaluations of the last trajectory.
func (s *splitting) ForceEvaluations() int { return s.lastEvaluations }

func (s *splitting) Evaluate(ctx context.Context, gauge *field.Gauge, momentum *field.Lie) error {
	if len(gauge.Links) != len(momentum.M) {
		return fmt.Errorf("%w: gauge has %d links, momentum %d", field.ErrFieldSize, len(gauge.Links), len(momentum.M))
	}
	k := &kicker{
		eng:         s.eng,
		forces:      s.forces,
		gauge:       gauge,
		p:           momentum,
		force:       field.NewLie(gauge.Lattice()),
		outer:       LevelAll,
		phase:       action.PhaseStartTrajectory,
		outerDrifts: s.cfg.Steps * s.outer.drifts,
	}
	evolve := func(eps float64) error {
		gauge.Evolve(s.eng, momentum, eps)
		return nil
	}
	d := func(eps float64) error {
		k.outerDrifts--
		return evolve(eps)
	}
	if s.inner != nil {
		k.outer = LevelFermion
		in := *s.inner
		n := s.cfg.NestedSteps
		d = func(eps float64) error {
			k.outerDrifts--
			h := eps / float64(n)
			for i := 0; i < n; i++ {
				if err := in.step(k, LevelGauge, h, evolve); err != nil {
					return err
				}
			}
			return nil
		}
	}

	eps := s.cfg.StepSize()
	for i := 0; i < s.cfg.Steps; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.outer.step(k, k.outer, eps, d); err != nil {
			return fmt.Errorf("%s step %d: %w", s.name, i, err)
		}
	}
	s.lastEvaluations = k.evaluations
	return nil
}

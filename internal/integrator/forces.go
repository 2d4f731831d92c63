package integrator

import (
	"gaugehmc/internal/action"
	"gaugehmc/internal/field"
	"gaugehmc/internal/parallel"
)

// Level selects which actions a momentum update draws its force from.
type Level int

const (
	LevelAll Level = iota
	LevelGauge
	LevelFermion
)

func (l Level) String() string {
	switch l {
	case LevelAll:
		return "all"
	case LevelGauge:
		return "gauge"
	case LevelFermion:
		return "fermion"
	default:
		return "unknown"
	}
}

// Forces sums the forces of the registered actions, split into the pure
// gauge and the fermion level.
type Forces struct {
	eng     *parallel.Engine
	gauge   []action.Action
	fermion []action.Action
}

func NewForces(eng *parallel.Engine, actions []action.Action) *Forces {
	f := &Forces{eng: eng}
	for _, a := range actions {
		if a.IsFermion() {
			f.fermion = append(f.fermion, a)
		} else {
			f.gauge = append(f.gauge, a)
		}
	}
	return f
}

func (f *Forces) Actions(level Level) []action.Action {
	switch level {
	case LevelGauge:
		return f.gauge
	case LevelFermion:
		return f.fermion
	default:
		out := make([]action.Action, 0, len(f.gauge)+len(f.fermion))
		out = append(out, f.gauge...)
		return append(out, f.fermion...)
	}
}

// Empty reports whether no action contributes at level.
func (f *Forces) Empty(level Level) bool {
	return len(f.Actions(level)) == 0
}

// Evaluate overwrites out with the summed force of level on gauge.
func (f *Forces) Evaluate(level Level, gauge *field.Gauge, out *field.Lie, phase action.Phase) error {
	out.Zero()
	for _, a := range f.Actions(level) {
		if err := a.CalculateForceOnGauge(gauge, out, phase); err != nil {
			return err
		}
	}
	return nil
}

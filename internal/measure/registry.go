package measure

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"gaugehmc/internal/action"
	"gaugehmc/internal/params"
)

var (
	ErrMeasurementExists   = errors.New("measurement already registered")
	ErrMeasurementNotFound = errors.New("measurement not found")
)

// Factory builds a measurement. It may read parameters of the configured
// actions, for example the coupling and rotation axis.
type Factory func(env action.Env, actions []action.Action, rec params.MeasurementRecord) (Measurement, error)

var measurementRegistry = struct {
	mu sync.RWMutex
	m  map[string]Factory
}{
	m: builtinMeasurements(),
}

func builtinMeasurements() map[string]Factory {
	return map[string]Factory{
		"plaquette_energy": func(env action.Env, _ []action.Action, rec params.MeasurementRecord) (Measurement, error) {
			return NewPlaquetteEnergy(rec.ID, env.Engine), nil
		},
		"action_energy": func(_ action.Env, actions []action.Action, rec params.MeasurementRecord) (Measurement, error) {
			return NewActionEnergy(rec.ID, actions, rec.Params.Int("fermion_field_count", 1)), nil
		},
		"angular_momentum": newAngularMomentumFromRecord,
		"polyakov_xy":      newPolyakovFromRecord,
		"wilson_loop_xy":   newWilsonLoopFromRecord,
	}
}

// rotationCenter is the center of the first rotating action, or the middle
// of the x-y plane.
func rotationCenter(env action.Env, actions []action.Action) ([2]float64, bool) {
	l := env.Lattice.Config.Lengths
	for _, a := range actions {
		if rot, ok := a.(*action.Rotating); ok {
			return rot.Center(), rot.Shifted()
		}
	}
	return [2]float64{float64(l[0] / 2), float64(l[1] / 2)}, false
}

func newPolyakovFromRecord(env action.Env, actions []action.Action, rec params.MeasurementRecord) (Measurement, error) {
	center, _ := rotationCenter(env, actions)
	if c, ok := rec.Params.Floats("center"); ok && len(c) >= 2 {
		center = [2]float64{c[0], c[1]}
	}
	smear, err := apeFromRecord(rec.Params)
	if err != nil {
		return nil, err
	}
	m := NewPolyakovXY(rec.ID, env.Lattice, env.Engine, center)
	m.MeasureLoopZ(rec.Params.Bool("measure_loop_z", false))
	m.SetSmearing(smear)
	return m, nil
}

func newWilsonLoopFromRecord(env action.Env, _ []action.Action, rec params.MeasurementRecord) (Measurement, error) {
	l := env.Lattice.Config.Lengths
	maxR := rec.Params.Int("max_r", max(1, min(l[0], l[1])/2))
	maxT := rec.Params.Int("max_t", max(1, l[timeDir]/2))
	smear, err := apeFromRecord(rec.Params)
	if err != nil {
		return nil, err
	}
	m, err := NewWilsonLoopXY(rec.ID, env.Lattice, env.Engine, maxR, maxT)
	if err != nil {
		return nil, err
	}
	m.SetSmearing(smear)
	return m, nil
}

func newAngularMomentumFromRecord(env action.Env, actions []action.Action, rec params.MeasurementRecord) (Measurement, error) {
	beta := 0.0
	center, shifted := rotationCenter(env, actions)
	for _, a := range actions {
		if rot, ok := a.(*action.Rotating); ok {
			beta = rot.Beta()
			break
		}
	}
	beta = rec.Params.Float("beta", beta)
	if beta <= 0 {
		return nil, fmt.Errorf("%w: angular_momentum needs plaquette_rotating or a beta parameter", ErrNoActionForMeasurement)
	}
	if c, ok := rec.Params.Floats("center"); ok && len(c) >= 2 {
		center = [2]float64{c[0], c[1]}
	}
	shifted = rec.Params.Bool("shift_half_coord", shifted)
	return NewAngularMomentum(rec.ID, env.Lattice, env.Engine, beta, center, shifted), nil
}

func RegisterMeasurement(name string, factory Factory) error {
	if name == "" {
		return errors.New("measurement name is required")
	}
	if factory == nil {
		return errors.New("measurement factory is required")
	}
	measurementRegistry.mu.Lock()
	defer measurementRegistry.mu.Unlock()

	if _, exists := measurementRegistry.m[name]; exists {
		return fmt.Errorf("%w: %s", ErrMeasurementExists, name)
	}
	measurementRegistry.m[name] = factory
	return nil
}

func New(env action.Env, actions []action.Action, rec params.MeasurementRecord) (Measurement, error) {
	measurementRegistry.mu.RLock()
	factory, ok := measurementRegistry.m[rec.Name]
	measurementRegistry.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMeasurementNotFound, rec.Name)
	}
	return factory(env, actions, rec)
}

func ListMeasurements() []string {
	measurementRegistry.mu.RLock()
	defer measurementRegistry.mu.RUnlock()

	names := make([]string, 0, len(measurementRegistry.m))
	for name := range measurementRegistry.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func resetMeasurementRegistryForTests() {
	measurementRegistry.mu.Lock()
	defer measurementRegistry.mu.Unlock()
	measurementRegistry.m = builtinMeasurements()
}

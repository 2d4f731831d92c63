package simulation

import (
	"errors"
	"fmt"
	"log/slog"

	"gaugehmc/internal/action"
	"gaugehmc/internal/field"
	"gaugehmc/internal/hmc"
	"gaugehmc/internal/integrator"
	"gaugehmc/internal/lattice"
	"gaugehmc/internal/measure"
	"gaugehmc/internal/parallel"
	"gaugehmc/internal/params"
	"gaugehmc/internal/random"
)

var ErrInitState = errors.New("simulation: unsupported init state")

// Device owns every object of one run: the baked lattice, the committed
// gauge field, the actions, the integrator, the updater and the measurements.
// Nothing in it is shared between runs.
type Device struct {
	Lattice      *lattice.Lattice
	Engine       *parallel.Engine
	Source       *random.Rand
	Gauge        *field.Gauge
	Actions      []action.Action
	Integrator   integrator.Integrator
	Updater      *hmc.Updater
	Measurements measure.Set
}

// Build validates rec and wires a ready-to-run device. Configuration errors
// are returned before any field is allocated beyond the lattice tables.
func Build(rec params.RunRecord, logger *slog.Logger) (*Device, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg := lattice.Config{Lengths: rec.Lattice.Lengths}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	bc, err := lattice.NewBoundary(rec.Lattice.Boundary)
	if err != nil {
		return nil, err
	}
	if err := bc.SetFieldBC(lattice.FermionFieldID, fermionCodes(bc, rec.Lattice.FermionBC)); err != nil {
		return nil, err
	}
	lat, err := lattice.New(cfg, bc, lattice.FermionFieldID)
	if err != nil {
		return nil, err
	}

	eng := parallel.New(rec.Lattice.Workers)
	src := random.New(rec.Updater.Seed)
	env := action.Env{Lattice: lat, Engine: eng, Source: src}

	gauge := field.NewGauge(lat)
	switch rec.Updater.InitState {
	case "", "identity", "cold":
		gauge.InitIdentity()
	case "random", "hot":
		gauge.InitRandom(src)
	default:
		return nil, fmt.Errorf("%w: %s", ErrInitState, rec.Updater.InitState)
	}

	actions := make([]action.Action, 0, len(rec.Actions))
	seen := make(map[int]bool, len(rec.Actions))
	for _, ar := range rec.Actions {
		if seen[ar.ID] {
			return nil, fmt.Errorf("%w: duplicate action id %d", action.ErrBadParameter, ar.ID)
		}
		seen[ar.ID] = true
		a, err := action.New(env, ar)
		if err != nil {
			return nil, err
		}
		actions = append(actions, a)
	}

	forces := integrator.NewForces(eng, actions)
	integ, err := integrator.New(eng, rec.Integrator, forces)
	if err != nil {
		return nil, err
	}

	updater, err := hmc.New(hmc.Config{
		Gauge:          gauge,
		Actions:        actions,
		Integrator:     integ,
		Engine:         eng,
		Source:         src,
		Logger:         logger,
		AutoCorrection: rec.Updater.AutoCorrection,
		Reunitarize:    rec.Updater.Reunitarize,
	})
	if err != nil {
		return nil, err
	}

	set := make(measure.Set, 0, len(rec.Measurements))
	for i, mr := range rec.Measurements {
		if mr.ID == 0 {
			mr.ID = i + 1
		}
		m, err := measure.New(env, actions, mr)
		if err != nil {
			return nil, err
		}
		set = append(set, m)
	}
	if len(set) > 0 {
		updater.AddHook(set)
	}

	return &Device{
		Lattice:      lat,
		Engine:       eng,
		Source:       src,
		Gauge:        gauge,
		Actions:      actions,
		Integrator:   integ,
		Updater:      updater,
		Measurements: set,
	}, nil
}

// LoadConfiguration replaces the committed field, for example with a stored
// snapshot, and drops every cached energy.
func (d *Device) LoadConfiguration(links []float64) error {
	if err := d.Gauge.LoadFlat(links); err != nil {
		return err
	}
	d.Updater.Invalidate()
	return nil
}

// fermionCodes pins the fermion field to the gauge field's Dirichlet
// directions and takes the requested codes everywhere else.
func fermionCodes(bc lattice.BoundaryCondition, requested lattice.Codes) lattice.Codes {
	gauge := bc.Codes(lattice.GaugeFieldID)
	out := requested
	for mu := range out {
		if gauge[mu] == lattice.Dirichlet {
			out[mu] = lattice.Dirichlet
		}
	}
	return out
}

// Package hmc runs hybrid Monte Carlo trajectories: momentum refresh,
// molecular dynamics integration and the Metropolis accept/reject test.
package hmc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"gaugehmc/internal/action"
	"gaugehmc/internal/field"
	"gaugehmc/internal/integrator"
	"gaugehmc/internal/parallel"
	"gaugehmc/internal/random"
)

var (
	ErrNonFiniteEnergy = errors.New("hmc: non-finite energy")
	ErrNoActions       = errors.New("hmc: at least one action is required")
	ErrBusy            = errors.New("hmc: trajectory already in progress")
	ErrTrajectoryLimit = errors.New("hmc: trajectory limit reached before configuration target")
)

type Config struct {
	Gauge      *field.Gauge
	Actions    []action.Action
	Integrator integrator.Integrator
	Engine     *parallel.Engine
	Source     random.Source
	Logger     *slog.Logger
	// AutoCorrection accepts every trajectory regardless of delta H.
	AutoCorrection bool
	// Reunitarize projects the links back onto SU(3) after each accepted
	// trajectory.
	Reunitarize bool
}

// Updater owns the committed gauge field and the trajectory statistics.
type Updater struct {
	gauge    *field.Gauge
	saved    *field.Gauge
	momentum *field.Lie
	actions  []action.Action
	integ    integrator.Integrator
	eng      *parallel.Engine
	src      random.Source
	logger   *slog.Logger

	hooks     []Hook
	observers []Observer

	state          State
	dirty          bool
	autoCorrection bool
	reunitarize    bool
	testHdiff      bool
	forceAccept    bool

	trajectories   int
	configurations int
	accepted       int
	hdiffSum       float64
	expHdiffSum    float64
	hdiffCount     int
	lastHDiff      float64
}

func New(cfg Config) (*Updater, error) {
	if len(cfg.Actions) == 0 {
		return nil, ErrNoActions
	}
	if cfg.Gauge == nil || cfg.Integrator == nil || cfg.Engine == nil || cfg.Source == nil {
		return nil, errors.New("hmc: gauge, integrator, engine and source are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	lat := cfg.Gauge.Lattice()
	return &Updater{
		gauge:          cfg.Gauge,
		saved:          field.NewGauge(lat),
		momentum:       field.NewLie(lat),
		actions:        cfg.Actions,
		integ:          cfg.Integrator,
		eng:            cfg.Engine,
		src:            cfg.Source,
		logger:         logger,
		dirty:          true,
		autoCorrection: cfg.AutoCorrection,
		reunitarize:    cfg.Reunitarize,
	}, nil
}

func (u *Updater) Gauge() *field.Gauge       { return u.gauge }
func (u *Updater) Actions() []action.Action  { return u.actions }
func (u *Updater) State() State              { return u.state }
func (u *Updater) AddHook(h Hook)            { u.hooks = append(u.hooks, h) }
func (u *Updater) AddObserver(o Observer)    { u.observers = append(u.observers, o) }
func (u *Updater) SetAutoCorrection(on bool) { u.autoCorrection = on }
func (u *Updater) SetForceAccept(on bool)    { u.forceAccept = on }
func (u *Updater) SetReunitarize(on bool)    { u.reunitarize = on }

// SetTestHdiff toggles the delta-H test mode. Switching it on restarts the
// running delta-H statistics.
func (u *Updater) SetTestHdiff(on bool) {
	u.testHdiff = on
	if on {
		u.hdiffSum, u.expHdiffSum, u.hdiffCount = 0, 0, 0
	}
}

func (u *Updater) GetConfigurationCount() int { return u.configurations }

func (u *Updater) SetConfigurationCount(n int) { u.configurations = n }

func (u *Updater) Trajectories() int { return u.trajectories }

// GetHDiff is the mean |delta H| of the trajectories counted so far.
func (u *Updater) GetHDiff() float64 {
	if u.hdiffCount == 0 {
		return 0
	}
	return u.hdiffSum / float64(u.hdiffCount)
}

// ExpHDiff is the mean of exp(-delta H), which is 1 for an exact integrator
// in equilibrium.
func (u *Updater) ExpHDiff() float64 {
	if u.hdiffCount == 0 {
		return 0
	}
	return u.expHdiffSum / float64(u.hdiffCount)
}

func (u *Updater) GetLastHDiff() float64 { return u.lastHDiff }

func (u *Updater) AcceptanceRate() float64 {
	if u.trajectories == 0 {
		return 0
	}
	return float64(u.accepted) / float64(u.trajectories)
}

// Invalidate marks the committed field as modified outside the updater, so
// every cached action energy is rebuilt on the next trajectory.
func (u *Updater) Invalidate() { u.dirty = true }

// Update runs n trajectories. Accepted trajectories notify the hooks only
// when measure is set.
func (u *Updater) Update(ctx context.Context, n int, measure bool) error {
	start := time.Now()
	before := u.accepted
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := u.Trajectory(ctx, measure); err != nil {
			return err
		}
	}
	u.logger.Info("hmc update finished",
		"trajectories", n,
		"measured", measure,
		"accepted", u.accepted-before,
		"configurations", u.configurations,
		"hdiff", u.GetHDiff(),
		"elapsed", time.Since(start),
	)
	return nil
}

// UpdateUntil resets the configuration counter and runs trajectories until
// target configurations have been accepted. It gives up with
// ErrTrajectoryLimit after limit trajectories; limit <= 0 means 10*target+10.
func (u *Updater) UpdateUntil(ctx context.Context, target int, measure bool, limit int) error {
	if limit <= 0 {
		limit = 10*target + 10
	}
	u.configurations = 0
	start := time.Now()
	n := 0
	for u.configurations < target {
		if n == limit {
			return fmt.Errorf("%w: %d of %d configurations after %d trajectories", ErrTrajectoryLimit, u.configurations, target, n)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := u.Trajectory(ctx, measure); err != nil {
			return err
		}
		n++
	}
	u.logger.Info("hmc update finished",
		"trajectories", n,
		"measured", measure,
		"configurations", u.configurations,
		"hdiff", u.GetHDiff(),
		"elapsed", time.Since(start),
	)
	return nil
}

// energies sums the action energies into H and records them per action.
func (u *Updater) energies(before bool, out []ActionEnergy) (float64, error) {
	total := 0.0
	for i, a := range u.actions {
		e, err := a.Energy(before, u.gauge)
		if err != nil {
			return 0, fmt.Errorf("action %s(%d): %w", a.Name(), a.ID(), err)
		}
		if before {
			out[i].Before = e
		} else {
			out[i].After = e
		}
		total += e
	}
	return total, nil
}

func (u *Updater) rollback() {
	// saved always matches the lattice of gauge
	_ = u.gauge.CopyFrom(u.saved)
	for _, a := range u.actions {
		a.OnFinishTrajectory(false)
	}
	u.state = StateIdle
}

// Trajectory runs a single trajectory and reports its outcome. On any error
// the committed field is restored before returning.
func (u *Updater) Trajectory(ctx context.Context, measure bool) (TrajectoryRecord, error) {
	if u.state != StateIdle {
		return TrajectoryRecord{}, ErrBusy
	}
	started := time.Now()
	rec := TrajectoryRecord{
		Trajectory: u.trajectories,
		Measured:   measure,
		Energies:   make([]ActionEnergy, len(u.actions)),
	}
	for i, a := range u.actions {
		rec.Energies[i] = ActionEnergy{ID: a.ID(), Name: a.Name()}
	}

	u.state = StateMomentumRefresh
	if err := u.saved.CopyFrom(u.gauge); err != nil {
		u.state = StateIdle
		return rec, err
	}
	iterate := u.trajectories
	if u.dirty {
		iterate = 0
	}
	for _, a := range u.actions {
		if err := a.PrepareForHMC(u.gauge, iterate); err != nil {
			u.rollback()
			return rec, fmt.Errorf("prepare %s: %w", a.Name(), err)
		}
	}
	u.dirty = false
	u.momentum.Gaussian(u.src)
	kinetic := u.momentum.Kinetic(u.eng)
	potential, err := u.energies(true, rec.Energies)
	if err != nil {
		u.rollback()
		return rec, u.numeric(err)
	}
	rec.HStart = kinetic + potential

	u.state = StateIntegrating
	if err := u.integ.Evaluate(ctx, u.gauge, u.momentum); err != nil {
		u.rollback()
		return rec, u.numeric(fmt.Errorf("integrate: %w", err))
	}

	u.state = StateEvaluating
	potential, err = u.energies(false, rec.Energies)
	if err != nil {
		u.rollback()
		return rec, u.numeric(err)
	}
	rec.HEnd = u.momentum.Kinetic(u.eng) + potential
	rec.DeltaH = rec.HEnd - rec.HStart
	if math.IsNaN(rec.DeltaH) || math.IsInf(rec.DeltaH, 0) {
		u.rollback()
		return rec, fmt.Errorf("%w: delta H=%g", ErrNonFiniteEnergy, rec.DeltaH)
	}

	rec.Uniform = u.src.Uniform()
	rec.Accepted = rec.Uniform < math.Exp(-rec.DeltaH)
	if !rec.Accepted && (u.autoCorrection || u.forceAccept) {
		rec.Accepted, rec.Forced = true, true
	}

	if rec.Accepted {
		u.state = StateAccepted
		u.accepted++
		u.configurations++
		if u.reunitarize {
			u.gauge.Unitarize(u.eng)
			u.dirty = true
		}
	} else {
		u.state = StateRejected
		_ = u.gauge.CopyFrom(u.saved)
	}
	for _, a := range u.actions {
		a.OnFinishTrajectory(rec.Accepted)
	}

	u.trajectories++
	u.lastHDiff = rec.DeltaH
	u.hdiffSum += math.Abs(rec.DeltaH)
	u.expHdiffSum += math.Exp(-rec.DeltaH)
	u.hdiffCount++
	rec.Configuration = u.configurations
	rec.Duration = time.Since(started)

	level := slog.LevelDebug
	if u.testHdiff {
		level = slog.LevelInfo
	}
	u.logger.Log(ctx, level, "hmc trajectory",
		"trajectory", rec.Trajectory,
		"state", u.state.String(),
		"delta_h", rec.DeltaH,
		"h_start", rec.HStart,
		"forced", rec.Forced,
	)

	var hookErr error
	if rec.Accepted && measure {
		for _, h := range u.hooks {
			if err := h.OnConfigurationAccepted(u.gauge); err != nil {
				hookErr = errors.Join(hookErr, err)
			}
		}
	}
	for _, o := range u.observers {
		o.OnTrajectory(rec)
	}
	u.state = StateIdle
	return rec, hookErr
}

// numeric maps a non-finite energy or force reported by an action to
// ErrNonFiniteEnergy while keeping the original cause.
func (u *Updater) numeric(err error) error {
	if errors.Is(err, action.ErrNonFiniteEnergy) || errors.Is(err, action.ErrNonFiniteForce) {
		return fmt.Errorf("%w: %w", ErrNonFiniteEnergy, err)
	}
	return err
}

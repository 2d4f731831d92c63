// Package simulation drives complete runs: it builds a device from a run
// record, equilibrates, measures, and persists the outcome.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"gaugehmc/internal/metrics"
	"gaugehmc/internal/model"
	"gaugehmc/internal/params"
	"gaugehmc/internal/stats"
	"gaugehmc/internal/storage"
)

var (
	ErrNotStarted    = errors.New("simulation: not initialized")
	ErrRunActive     = errors.New("simulation: run id already active")
	ErrNoStoredRun   = errors.New("simulation: no stored configuration for run")
	ErrStoredLattice = errors.New("simulation: stored configuration lattice mismatch")
)

type Config struct {
	Store storage.Store
	// ArtifactsDir receives per-run artifact files and the run index. Empty
	// disables artifacts.
	ArtifactsDir string
	Registerer   prometheus.Registerer
	Logger       *slog.Logger
}

type RunRequest struct {
	RunID  string
	Record params.RunRecord
	// ResumeFrom starts from the last stored configuration of another run.
	ResumeFrom string
	// SaveConfiguration persists the final gauge field.
	SaveConfiguration bool
}

type RunResult struct {
	RunID        string
	ArtifactsDir string
	Summary      stats.RunSummary
	Measurements []stats.MeasurementEntry
}

// Simulation is the long-lived owner of the store and of the active runs.
type Simulation struct {
	store        storage.Store
	artifactsDir string
	reg          prometheus.Registerer
	logger       *slog.Logger

	mu      sync.Mutex
	started bool
	runs    map[string]context.CancelFunc
}

func New(cfg Config) *Simulation {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Simulation{
		store:        cfg.Store,
		artifactsDir: cfg.ArtifactsDir,
		reg:          cfg.Registerer,
		logger:       logger,
		runs:         make(map[string]context.CancelFunc),
	}
}

func (s *Simulation) Init(ctx context.Context) error {
	if s.store == nil {
		return fmt.Errorf("store is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	if err := s.store.Init(ctx); err != nil {
		return err
	}
	s.started = true
	return nil
}

func (s *Simulation) Store() storage.Store { return s.store }

// ActiveRuns lists the ids of runs in progress.
func (s *Simulation) ActiveRuns() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.runs))
	for id := range s.runs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Stop cancels an active run. The run finishes its current trajectory,
// restores the committed field and is stored as failed.
func (s *Simulation) Stop(runID string) bool {
	s.mu.Lock()
	cancel, ok := s.runs[runID]
	s.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

func (s *Simulation) register(ctx context.Context, runID string) (context.Context, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil, nil, ErrNotStarted
	}
	if _, exists := s.runs[runID]; exists {
		return nil, nil, fmt.Errorf("%w: %s", ErrRunActive, runID)
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.runs[runID] = cancel
	return runCtx, func() {
		cancel()
		s.mu.Lock()
		delete(s.runs, runID)
		s.mu.Unlock()
	}, nil
}

// Run executes rec.Updater.Equilibration unmeasured trajectories followed by
// rec.Updater.Measured measured ones.
func (s *Simulation) Run(ctx context.Context, req RunRequest) (RunResult, error) {
	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	runCtx, done, err := s.register(ctx, runID)
	if err != nil {
		return RunResult{}, err
	}
	defer done()

	logger := s.logger.With("run", runID)
	rec := req.Record
	dev, err := Build(rec, logger)
	if err != nil {
		return RunResult{}, err
	}
	if req.ResumeFrom != "" {
		if err := s.resume(runCtx, dev, req.ResumeFrom); err != nil {
			return RunResult{}, err
		}
	}

	createdAt := time.Now().UTC()
	run := model.Run{
		VersionedRecord: storage.Versioned(),
		ID:              runID,
		CreatedAt:       createdAt,
		Status:          model.RunRunning,
		Lengths:         rec.Lattice.Lengths,
		Boundary:        dev.Lattice.BC.Name(),
		Actions:         actionNames(rec),
		Integrator:      dev.Integrator.Name(),
		Steps:           rec.Integrator.Steps,
		Seed:            rec.Updater.Seed,
	}
	if err := s.store.SaveRun(runCtx, run); err != nil {
		return RunResult{}, err
	}

	recorder := newTrajectoryRecorder(runID)
	dev.Updater.AddObserver(recorder)
	dev.Updater.AddObserver(metrics.New(s.reg, runID))

	logger.Info("run started",
		"lengths", rec.Lattice.Lengths,
		"boundary", run.Boundary,
		"actions", run.Actions,
		"integrator", run.Integrator,
		"steps", rec.Integrator.Steps,
		"seed", rec.Updater.Seed,
	)

	runErr := s.evolve(runCtx, dev, rec.Updater)
	elapsed := time.Since(createdAt)

	// Persist whatever completed, also for failed and cancelled runs.
	ctx = context.WithoutCancel(ctx)
	if err := s.store.AppendTrajectories(ctx, runID, recorder.records()); err != nil {
		return RunResult{}, errors.Join(runErr, err)
	}
	entries := measurementEntries(dev)
	if err := s.store.SaveMeasurements(ctx, runID, measurementRecords(runID, entries)); err != nil {
		return RunResult{}, errors.Join(runErr, err)
	}
	if req.SaveConfiguration && runErr == nil {
		if err := s.store.SaveConfiguration(ctx, model.Configuration{
			VersionedRecord: storage.Versioned(),
			RunID:           runID,
			Configuration:   dev.Updater.GetConfigurationCount(),
			Lengths:         rec.Lattice.Lengths,
			Links:           dev.Gauge.Flatten(),
		}); err != nil {
			return RunResult{}, err
		}
	}

	run.Trajectories = dev.Updater.Trajectories()
	run.Configurations = dev.Updater.GetConfigurationCount()
	run.AcceptanceRate = dev.Updater.AcceptanceRate()
	run.HDiff = dev.Updater.GetHDiff()
	run.Status = model.RunFinished
	if runErr != nil {
		run.Status = model.RunFailed
		run.Error = runErr.Error()
	}
	if err := s.store.SaveRun(ctx, run); err != nil {
		return RunResult{}, errors.Join(runErr, err)
	}
	if runErr != nil {
		logger.Error("run failed", "err", runErr, "trajectories", run.Trajectories)
		return RunResult{}, runErr
	}

	summary := stats.RunSummary{
		RunID:          runID,
		Trajectories:   run.Trajectories,
		Configurations: run.Configurations,
		AcceptanceRate: run.AcceptanceRate,
		HDiff:          run.HDiff,
		ExpHDiff:       dev.Updater.ExpHDiff(),
		ElapsedSeconds: elapsed.Seconds(),
	}
	result := RunResult{RunID: runID, Summary: summary, Measurements: entries}

	if s.artifactsDir != "" {
		dir, err := stats.WriteRunArtifacts(s.artifactsDir, stats.RunArtifacts{
			Config:       runConfig(runID, rec),
			Trajectories: recorder.entries(),
			Measurements: entries,
			Summary:      summary,
		})
		if err != nil {
			return RunResult{}, err
		}
		if err := stats.AppendRunIndex(s.artifactsDir, stats.RunIndexEntry{
			RunID:          runID,
			Lengths:        rec.Lattice.Lengths,
			Boundary:       run.Boundary,
			Actions:        run.Actions,
			Integrator:     run.Integrator,
			Seed:           rec.Updater.Seed,
			Trajectories:   run.Trajectories,
			Configurations: run.Configurations,
			AcceptanceRate: run.AcceptanceRate,
			HDiff:          run.HDiff,
			CreatedAtUTC:   createdAt.Format(time.RFC3339Nano),
		}); err != nil {
			return RunResult{}, err
		}
		result.ArtifactsDir = dir
	}

	logger.Info("run finished",
		"trajectories", run.Trajectories,
		"acceptance", run.AcceptanceRate,
		"hdiff", run.HDiff,
		"exp_hdiff", summary.ExpHDiff,
		"elapsed", elapsed,
	)
	return result, nil
}

func (s *Simulation) evolve(ctx context.Context, dev *Device, up params.UpdaterRecord) error {
	update := func(n int, measure bool) error {
		if up.CountConfigurations {
			return dev.Updater.UpdateUntil(ctx, n, measure, up.MaxTrajectories)
		}
		return dev.Updater.Update(ctx, n, measure)
	}
	if err := update(up.Equilibration, false); err != nil {
		return fmt.Errorf("equilibration: %w", err)
	}
	dev.Measurements.Reset()
	if up.TestHdiff {
		dev.Updater.SetTestHdiff(true)
	}
	if err := update(up.Measured, true); err != nil {
		return fmt.Errorf("measurement: %w", err)
	}
	return nil
}

func (s *Simulation) resume(ctx context.Context, dev *Device, from string) error {
	cfg, ok, err := s.store.GetConfiguration(ctx, from)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoStoredRun, from)
	}
	if cfg.Lengths != dev.Lattice.Config.Lengths {
		return fmt.Errorf("%w: stored=%v run=%v", ErrStoredLattice, cfg.Lengths, dev.Lattice.Config.Lengths)
	}
	if err := dev.LoadConfiguration(cfg.Links); err != nil {
		return err
	}
	dev.Updater.SetConfigurationCount(cfg.Configuration)
	return nil
}

func actionNames(rec params.RunRecord) []string {
	names := make([]string, 0, len(rec.Actions))
	for _, a := range rec.Actions {
		names = append(names, a.Name)
	}
	return names
}

func measurementEntries(dev *Device) []stats.MeasurementEntry {
	out := make([]stats.MeasurementEntry, 0, len(dev.Measurements))
	for _, m := range dev.Measurements {
		out = append(out, stats.MeasurementEntry{
			ID:      m.ID(),
			Name:    m.Name(),
			Values:  m.Values(),
			Summary: m.Average(),
		})
	}
	return out
}

func measurementRecords(runID string, entries []stats.MeasurementEntry) []model.Measurement {
	out := make([]model.Measurement, 0, len(entries))
	for _, e := range entries {
		out = append(out, model.Measurement{
			VersionedRecord: storage.Versioned(),
			RunID:           runID,
			ID:              e.ID,
			Name:            e.Name,
			Values:          e.Values,
			Mean:            e.Summary.Mean,
			Error:           e.Summary.Error,
		})
	}
	return out
}

func runConfig(runID string, rec params.RunRecord) stats.RunConfig {
	cfg := stats.RunConfig{
		RunID:          runID,
		Lengths:        rec.Lattice.Lengths,
		Boundary:       rec.Lattice.Boundary,
		FermionBC:      rec.Lattice.FermionBC,
		Workers:        rec.Lattice.Workers,
		Integrator:     rec.Integrator.Name,
		Length:         rec.Integrator.Length,
		Steps:          rec.Integrator.Steps,
		NestedSteps:    rec.Integrator.NestedSteps,
		Lambda:         rec.Integrator.Lambda,
		Seed:           rec.Updater.Seed,
		InitState:      rec.Updater.InitState,
		Equilibration:  rec.Updater.Equilibration,
		Measured:       rec.Updater.Measured,
		AutoCorrection: rec.Updater.AutoCorrection,
		Reunitarize:    rec.Updater.Reunitarize,
		CountConfigs:   rec.Updater.CountConfigurations,
		StoreKind:      rec.Store.Kind,
	}
	for _, a := range rec.Actions {
		cfg.Actions = append(cfg.Actions, stats.ActionConfig{Name: a.Name, ID: a.ID, Params: a.Params.Clone()})
	}
	for _, m := range rec.Measurements {
		cfg.Measurements = append(cfg.Measurements, stats.MeasurementConfig{Name: m.Name, ID: m.ID, Params: m.Params.Clone()})
	}
	return cfg
}

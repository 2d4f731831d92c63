// Package gaugehmc is the public entry point for running lattice gauge HMC
// simulations and browsing their results.
package gaugehmc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"gaugehmc/internal/params"
	"gaugehmc/internal/simulation"
	"gaugehmc/internal/stats"
	"gaugehmc/internal/storage"
)

const (
	defaultArtifactsDir = "runs"
	defaultExportsDir   = "exports"
	defaultDBPath       = "gaugehmc.db"
)

type Options struct {
	StoreKind    string
	DBPath       string
	ArtifactsDir string
	ExportsDir   string
	Logger       *slog.Logger
	Registerer   prometheus.Registerer
}

type Client struct {
	store storage.Store
	sim   *simulation.Simulation

	artifactsDir string
	exportsDir   string
	logger       *slog.Logger
	registerer   prometheus.Registerer
}

// RunRequest carries a raw parameter document (the same shape as a YAML or
// JSON parameter file) plus per-call overrides.
type RunRequest struct {
	RunID             string
	Params            map[string]any
	ParamsFile        string
	Seed              *int64
	Equilibration     *int
	Measured          *int
	ResumeFrom        string
	SaveConfiguration bool
}

type MeasurementSummary struct {
	ID     int
	Name   string
	Mean   float64
	Error  float64
	Count  int
	Values []float64
}

type RunSummary struct {
	RunID          string
	ArtifactsDir   string
	Trajectories   int
	Configurations int
	AcceptanceRate float64
	HDiff          float64
	ExpHDiff       float64
	Measurements   []MeasurementSummary
}

type SweepRequest struct {
	SweepID    string
	Params     map[string]any
	ParamsFile string
	ActionID   int
	Parameter  string
	Values     []float64
}

type SweepPoint struct {
	Value          float64
	RunID          string
	AcceptanceRate float64
	Measurements   []MeasurementSummary
}

type SweepSummary struct {
	SweepID   string
	Parameter string
	Points    []SweepPoint
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID          string
	CreatedAtUTC   string
	Lengths        [4]int
	Boundary       string
	Actions        []string
	Integrator     string
	Seed           int64
	Trajectories   int
	AcceptanceRate float64
}

type TrajectoriesRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type TrajectoryItem struct {
	Index         int
	Configuration int
	Measured      bool
	Accepted      bool
	DeltaH        float64
}

type MeasurementsRequest struct {
	RunID  string
	Latest bool
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

func New(opts Options) (*Client, error) {
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	artifactsDir := opts.ArtifactsDir
	if artifactsDir == "" {
		artifactsDir = defaultArtifactsDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	store, err := storage.NewStore(params.StoreRecord{Kind: opts.StoreKind, Path: dbPath})
	if err != nil {
		return nil, err
	}

	return &Client{
		store:        store,
		artifactsDir: artifactsDir,
		exportsDir:   exportsDir,
		logger:       logger,
		registerer:   opts.Registerer,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	_, err := c.ensureSimulation(ctx)
	return err
}

func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	rec, err := c.runRecord(req.Params, req.ParamsFile)
	if err != nil {
		return RunSummary{}, err
	}
	if req.Seed != nil {
		rec.Updater.Seed = *req.Seed
	}
	if req.Equilibration != nil {
		if *req.Equilibration < 0 {
			return RunSummary{}, errors.New("equilibration must be >= 0")
		}
		rec.Updater.Equilibration = *req.Equilibration
	}
	if req.Measured != nil {
		if *req.Measured < 0 {
			return RunSummary{}, errors.New("measured must be >= 0")
		}
		rec.Updater.Measured = *req.Measured
	}

	sim, err := c.ensureSimulation(ctx)
	if err != nil {
		return RunSummary{}, err
	}
	res, err := sim.Run(ctx, simulation.RunRequest{
		RunID:             req.RunID,
		Record:            rec,
		ResumeFrom:        req.ResumeFrom,
		SaveConfiguration: req.SaveConfiguration,
	})
	if err != nil {
		return RunSummary{}, err
	}
	return RunSummary{
		RunID:          res.RunID,
		ArtifactsDir:   filepath.Clean(res.ArtifactsDir),
		Trajectories:   res.Summary.Trajectories,
		Configurations: res.Summary.Configurations,
		AcceptanceRate: res.Summary.AcceptanceRate,
		HDiff:          res.Summary.HDiff,
		ExpHDiff:       res.Summary.ExpHDiff,
		Measurements:   measurementSummaries(res.Measurements),
	}, nil
}

func (c *Client) Sweep(ctx context.Context, req SweepRequest) (SweepSummary, error) {
	rec, err := c.runRecord(req.Params, req.ParamsFile)
	if err != nil {
		return SweepSummary{}, err
	}
	actionID := req.ActionID
	if actionID == 0 && len(rec.Actions) > 0 {
		actionID = rec.Actions[0].ID
	}
	sim, err := c.ensureSimulation(ctx)
	if err != nil {
		return SweepSummary{}, err
	}
	sw, err := sim.Sweep(ctx, simulation.SweepRequest{
		SweepID:   req.SweepID,
		Record:    rec,
		ActionID:  actionID,
		Parameter: req.Parameter,
		Values:    req.Values,
	})
	if err != nil {
		return SweepSummary{}, err
	}
	out := SweepSummary{SweepID: sw.ID, Parameter: sw.Parameter}
	for _, p := range sw.Points {
		out.Points = append(out.Points, SweepPoint{
			Value:          p.Value,
			RunID:          p.RunID,
			AcceptanceRate: p.AcceptanceRate,
			Measurements:   measurementSummaries(p.Results),
		})
	}
	return out, nil
}

func (c *Client) Runs(_ context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}

	entries, err := stats.ListRunIndex(c.artifactsDir)
	if err != nil {
		return nil, err
	}
	if len(entries) > req.Limit {
		entries = entries[:req.Limit]
	}

	out := make([]RunItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, RunItem{
			RunID:          e.RunID,
			CreatedAtUTC:   e.CreatedAtUTC,
			Lengths:        e.Lengths,
			Boundary:       e.Boundary,
			Actions:        append([]string(nil), e.Actions...),
			Integrator:     e.Integrator,
			Seed:           e.Seed,
			Trajectories:   e.Trajectories,
			AcceptanceRate: e.AcceptanceRate,
		})
	}
	return out, nil
}

// Trajectories reads the trajectory history of a run from the store, or from
// the run's artifacts when the store does not know the run.
func (c *Client) Trajectories(ctx context.Context, req TrajectoriesRequest) ([]TrajectoryItem, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest, "trajectories")
	if err != nil {
		return nil, err
	}
	if _, err := c.ensureSimulation(ctx); err != nil {
		return nil, err
	}

	var out []TrajectoryItem
	stored, ok, err := c.store.GetTrajectories(ctx, runID)
	if err != nil {
		return nil, err
	}
	if ok {
		for _, t := range stored {
			out = append(out, TrajectoryItem{Index: t.Index, Configuration: t.Configuration, Measured: t.Measured, Accepted: t.Accepted, DeltaH: t.DeltaH})
		}
	} else {
		series, ok, err := stats.ReadTrajectorySeries(c.artifactsDir, runID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("trajectories not found for run id: %s", runID)
		}
		for _, t := range series {
			out = append(out, TrajectoryItem{Index: t.Index, Configuration: t.Configuration, Measured: t.Measured, Accepted: t.Accepted, DeltaH: t.DeltaH})
		}
	}
	if req.Limit > 0 && len(out) > req.Limit {
		out = out[:req.Limit]
	}
	return out, nil
}

func (c *Client) Measurements(ctx context.Context, req MeasurementsRequest) ([]MeasurementSummary, error) {
	runID, err := c.resolveRunID(req.RunID, req.Latest, "measurements")
	if err != nil {
		return nil, err
	}
	if _, err := c.ensureSimulation(ctx); err != nil {
		return nil, err
	}

	stored, ok, err := c.store.GetMeasurements(ctx, runID)
	if err != nil {
		return nil, err
	}
	if ok {
		out := make([]MeasurementSummary, 0, len(stored))
		for _, m := range stored {
			out = append(out, MeasurementSummary{
				ID:     m.ID,
				Name:   m.Name,
				Mean:   m.Mean,
				Error:  m.Error,
				Count:  len(m.Values),
				Values: append([]float64(nil), m.Values...),
			})
		}
		return out, nil
	}
	entries, ok, err := stats.ReadMeasurements(c.artifactsDir, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("measurements not found for run id: %s", runID)
	}
	return measurementSummaries(entries), nil
}

func (c *Client) Export(_ context.Context, req ExportRequest) (ExportSummary, error) {
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest, "export")
	if err != nil {
		return ExportSummary{}, err
	}

	exportedDir, err := stats.ExportRunArtifacts(c.artifactsDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}, nil
}

func (c *Client) resolveRunID(runID string, latest bool, what string) (string, error) {
	if runID != "" && latest {
		return "", errors.New("use either run id or latest")
	}
	if latest {
		entries, err := stats.ListRunIndex(c.artifactsDir)
		if err != nil {
			return "", err
		}
		if len(entries) == 0 {
			return "", errors.New("no runs available")
		}
		return entries[0].RunID, nil
	}
	if runID == "" {
		return "", fmt.Errorf("%s requires run id or latest", what)
	}
	return runID, nil
}

func (c *Client) runRecord(raw map[string]any, path string) (params.RunRecord, error) {
	if raw != nil && path != "" {
		return params.RunRecord{}, errors.New("use either params or params file")
	}
	if path != "" {
		loaded, err := params.LoadFile(path)
		if err != nil {
			return params.RunRecord{}, err
		}
		raw = loaded
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return params.ConvertRun(raw), nil
}

func (c *Client) ensureSimulation(ctx context.Context) (*simulation.Simulation, error) {
	if c.sim != nil {
		return c.sim, nil
	}
	sim := simulation.New(simulation.Config{
		Store:        c.store,
		ArtifactsDir: c.artifactsDir,
		Registerer:   c.registerer,
		Logger:       c.logger,
	})
	if err := sim.Init(ctx); err != nil {
		return nil, err
	}
	c.sim = sim
	return c.sim, nil
}

func measurementSummaries(entries []stats.MeasurementEntry) []MeasurementSummary {
	out := make([]MeasurementSummary, 0, len(entries))
	for _, e := range entries {
		out = append(out, MeasurementSummary{
			ID:     e.ID,
			Name:   e.Name,
			Mean:   e.Summary.Mean,
			Error:  e.Summary.Error,
			Count:  e.Summary.Count,
			Values: append([]float64(nil), e.Values...),
		})
	}
	return out
}

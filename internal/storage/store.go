package storage

import (
	"context"

	"gaugehmc/internal/model"
)

// Store defines transaction-like persistence operations for simulation runs.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.Run) error
	GetRun(ctx context.Context, id string) (model.Run, bool, error)
	ListRuns(ctx context.Context) ([]model.Run, error)
	AppendTrajectories(ctx context.Context, runID string, trajectories []model.Trajectory) error
	GetTrajectories(ctx context.Context, runID string) ([]model.Trajectory, bool, error)
	SaveMeasurements(ctx context.Context, runID string, measurements []model.Measurement) error
	GetMeasurements(ctx context.Context, runID string) ([]model.Measurement, bool, error)
	SaveConfiguration(ctx context.Context, cfg model.Configuration) error
	GetConfiguration(ctx context.Context, runID string) (model.Configuration, bool, error)
}

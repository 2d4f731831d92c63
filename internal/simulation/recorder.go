package simulation

import (
	"sync"

	"gaugehmc/internal/hmc"
	"gaugehmc/internal/model"
	"gaugehmc/internal/stats"
	"gaugehmc/internal/storage"
)

// trajectoryRecorder buffers every completed trajectory of a run until the
// run is persisted.
type trajectoryRecorder struct {
	runID string

	mu   sync.Mutex
	recs []hmc.TrajectoryRecord
}

func newTrajectoryRecorder(runID string) *trajectoryRecorder {
	return &trajectoryRecorder{runID: runID}
}

func (r *trajectoryRecorder) OnTrajectory(rec hmc.TrajectoryRecord) {
	r.mu.Lock()
	r.recs = append(r.recs, rec)
	r.mu.Unlock()
}

func (r *trajectoryRecorder) records() []model.Trajectory {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Trajectory, 0, len(r.recs))
	for _, rec := range r.recs {
		out = append(out, model.Trajectory{
			VersionedRecord: storage.Versioned(),
			RunID:           r.runID,
			Index:           rec.Trajectory,
			Configuration:   rec.Configuration,
			Measured:        rec.Measured,
			Accepted:        rec.Accepted,
			Forced:          rec.Forced,
			HStart:          rec.HStart,
			HEnd:            rec.HEnd,
			DeltaH:          rec.DeltaH,
			DurationNS:      rec.Duration.Nanoseconds(),
		})
	}
	return out
}

func (r *trajectoryRecorder) entries() []stats.TrajectoryEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]stats.TrajectoryEntry, 0, len(r.recs))
	for _, rec := range r.recs {
		out = append(out, stats.TrajectoryEntry{
			Index:         rec.Trajectory,
			Configuration: rec.Configuration,
			Measured:      rec.Measured,
			Accepted:      rec.Accepted,
			DeltaH:        rec.DeltaH,
		})
	}
	return out
}

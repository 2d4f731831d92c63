package storage

import (
	"context"
	"sort"
	"sync"

	"gaugehmc/internal/model"
)

type MemoryStore struct {
	mu             sync.RWMutex
	initialized    bool
	runs           map[string]model.Run
	trajectories   map[string][]model.Trajectory
	measurements   map[string][]model.Measurement
	configurations map[string]model.Configuration
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.runs = make(map[string]model.Run)
	s.trajectories = make(map[string][]model.Trajectory)
	s.measurements = make(map[string][]model.Measurement)
	s.configurations = make(map[string]model.Configuration)
	return nil
}

func cloneRun(r model.Run) model.Run {
	r.Actions = append([]string(nil), r.Actions...)
	return r
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs[run.ID] = cloneRun(run)
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (model.Run, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return model.Run{}, false, nil
	}
	return cloneRun(run), true, nil
}

// ListRuns returns the runs newest first.
func (s *MemoryStore) ListRuns(_ context.Context) ([]model.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Run, 0, len(s.runs))
	for _, run := range s.runs {
		out = append(out, cloneRun(run))
	}
	sortRuns(out)
	return out, nil
}

func sortRuns(runs []model.Run) {
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].CreatedAt.Equal(runs[j].CreatedAt) {
			return runs[i].ID < runs[j].ID
		}
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})
}

func (s *MemoryStore) AppendTrajectories(_ context.Context, runID string, trajectories []model.Trajectory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.trajectories[runID]
	for _, t := range trajectories {
		if t.Index >= 0 && t.Index < len(existing) && existing[t.Index].Index == t.Index {
			existing[t.Index] = t
			continue
		}
		existing = append(existing, t)
	}
	s.trajectories[runID] = existing
	return nil
}

func (s *MemoryStore) GetTrajectories(_ context.Context, runID string) ([]model.Trajectory, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ts, ok := s.trajectories[runID]
	if !ok {
		return nil, false, nil
	}
	copied := make([]model.Trajectory, len(ts))
	copy(copied, ts)
	return copied, true, nil
}

func (s *MemoryStore) SaveMeasurements(_ context.Context, runID string, measurements []model.Measurement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make([]model.Measurement, 0, len(measurements))
	for _, m := range measurements {
		m.Values = append([]float64(nil), m.Values...)
		copied = append(copied, m)
	}
	s.measurements[runID] = copied
	return nil
}

func (s *MemoryStore) GetMeasurements(_ context.Context, runID string) ([]model.Measurement, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ms, ok := s.measurements[runID]
	if !ok {
		return nil, false, nil
	}
	copied := make([]model.Measurement, 0, len(ms))
	for _, m := range ms {
		m.Values = append([]float64(nil), m.Values...)
		copied = append(copied, m)
	}
	return copied, true, nil
}

func (s *MemoryStore) SaveConfiguration(_ context.Context, cfg model.Configuration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg.Links = append([]float64(nil), cfg.Links...)
	s.configurations[cfg.RunID] = cfg
	return nil
}

func (s *MemoryStore) GetConfiguration(_ context.Context, runID string) (model.Configuration, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg, ok := s.configurations[runID]
	if !ok {
		return model.Configuration{}, false, nil
	}
	cfg.Links = append([]float64(nil), cfg.Links...)
	return cfg, true, nil
}

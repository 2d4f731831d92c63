package simulation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"gaugehmc/internal/params"
	"gaugehmc/internal/stats"
)

var ErrSweepAction = errors.New("simulation: sweep action not configured")

// SweepRequest scans one parameter of one action. Every point is an
// independent run with the same seed.
type SweepRequest struct {
	SweepID   string
	Record    params.RunRecord
	ActionID  int
	Parameter string
	Values    []float64
}

func (s *Simulation) Sweep(ctx context.Context, req SweepRequest) (stats.Sweep, error) {
	if req.Parameter == "" || len(req.Values) == 0 {
		return stats.Sweep{}, fmt.Errorf("sweep needs a parameter and at least one value")
	}
	idx := -1
	for i, a := range req.Record.Actions {
		if a.ID == req.ActionID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return stats.Sweep{}, fmt.Errorf("%w: id %d", ErrSweepAction, req.ActionID)
	}

	sw := stats.Sweep{
		ID:           req.SweepID,
		Action:       req.ActionID,
		Parameter:    req.Parameter,
		Values:       append([]float64(nil), req.Values...),
		StartedAtUTC: time.Now().UTC().Format(time.RFC3339Nano),
	}
	if sw.ID == "" {
		sw.ID = uuid.NewString()
	}

	for _, v := range req.Values {
		if err := ctx.Err(); err != nil {
			return sw, err
		}
		rec := withActionParam(req.Record, idx, req.Parameter, v)
		res, err := s.Run(ctx, RunRequest{Record: rec})
		if err != nil {
			return sw, fmt.Errorf("sweep %s=%g: %w", req.Parameter, v, err)
		}
		sw.Points = append(sw.Points, sweepPoint(v, res))
		s.logger.Info("sweep point finished",
			"sweep", sw.ID,
			"parameter", req.Parameter,
			"value", v,
			"run", res.RunID,
			"acceptance", res.Summary.AcceptanceRate,
		)
	}
	sw.CompletedAtUTC = time.Now().UTC().Format(time.RFC3339Nano)

	if s.artifactsDir != "" {
		if err := stats.WriteSweep(s.artifactsDir, sw); err != nil {
			return sw, err
		}
	}
	return sw, nil
}

func sweepPoint(value float64, res RunResult) stats.SweepPoint {
	return stats.SweepPoint{
		Value:          value,
		RunID:          res.RunID,
		AcceptanceRate: res.Summary.AcceptanceRate,
		Results:        res.Measurements,
	}
}

// withActionParam copies rec deep enough that the scanned parameter never
// leaks into the caller's record.
func withActionParam(rec params.RunRecord, idx int, key string, value float64) params.RunRecord {
	out := rec
	out.Actions = make([]params.ActionRecord, len(rec.Actions))
	copy(out.Actions, rec.Actions)
	p := out.Actions[idx].Params.Clone()
	p[key] = value
	out.Actions[idx].Params = p
	return out
}

// Package measure accumulates observables on the configurations accepted by
// the HMC updater.
package measure

import (
	"errors"

	"gaugehmc/internal/field"
	"gaugehmc/internal/stats"
)

var ErrNoActionForMeasurement = errors.New("measure: required action is not configured")

type Measurement interface {
	ID() int
	Name() string
	OnConfigurationAccepted(gauge *field.Gauge) error
	Average() stats.Summary
	Values() []float64
	Reset()
	Report() Result
}

// Result is the reportable state of one measurement.
type Result struct {
	ID      int           `json:"id"`
	Name    string        `json:"name"`
	Last    float64       `json:"last"`
	Summary stats.Summary `json:"summary"`
}

// series keeps the per-configuration values of one observable.
type series struct {
	id     int
	name   string
	values []float64
}

func (s *series) ID() int           { return s.id }
func (s *series) Name() string      { return s.name }
func (s *series) Values() []float64 { return append([]float64(nil), s.values...) }
func (s *series) Reset()            { s.values = s.values[:0] }
func (s *series) add(v float64)     { s.values = append(s.values, v) }

func (s *series) Average() stats.Summary { return stats.Summarize(s.values) }

func (s *series) Last() float64 {
	if len(s.values) == 0 {
		return 0
	}
	return s.values[len(s.values)-1]
}

func (s *series) Report() Result {
	return Result{ID: s.id, Name: s.name, Last: s.Last(), Summary: s.Average()}
}

// Set fans an accepted configuration out to every measurement.
type Set []Measurement

func (s Set) OnConfigurationAccepted(gauge *field.Gauge) error {
	var errs error
	for _, m := range s {
		if err := m.OnConfigurationAccepted(gauge); err != nil {
			errs = errors.Join(errs, err)
		}
	}
	return errs
}

func (s Set) Reset() {
	for _, m := range s {
		m.Reset()
	}
}

func (s Set) ByID(id int) (Measurement, bool) {
	for _, m := range s {
		if m.ID() == id {
			return m, true
		}
	}
	return nil, false
}

func (s Set) Reports() []Result {
	out := make([]Result, 0, len(s))
	for _, m := range s {
		out = append(out, m.Report())
	}
	return out
}

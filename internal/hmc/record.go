package hmc

import (
	"time"

	"gaugehmc/internal/field"
)

type ActionEnergy struct {
	ID     int     `json:"id"`
	Name   string  `json:"name"`
	Before float64 `json:"before"`
	After  float64 `json:"after"`
}

// TrajectoryRecord summarizes one finished trajectory.
type TrajectoryRecord struct {
	Trajectory    int            `json:"trajectory"`
	Configuration int            `json:"configuration"`
	Measured      bool           `json:"measured"`
	Accepted      bool           `json:"accepted"`
	Forced        bool           `json:"forced,omitempty"`
	HStart        float64        `json:"h_start"`
	HEnd          float64        `json:"h_end"`
	DeltaH        float64        `json:"delta_h"`
	Uniform       float64        `json:"uniform"`
	Energies      []ActionEnergy `json:"energies"`
	Duration      time.Duration  `json:"duration"`
}

// Observer sees every finished trajectory, accepted or not.
type Observer interface {
	OnTrajectory(rec TrajectoryRecord)
}

type ObserverFunc func(rec TrajectoryRecord)

func (f ObserverFunc) OnTrajectory(rec TrajectoryRecord) { f(rec) }

// Hook is notified with the committed field after every accepted trajectory
// flagged for measurement.
type Hook interface {
	OnConfigurationAccepted(gauge *field.Gauge) error
}

package model

import "time"

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

type RunStatus string

const (
	RunRunning  RunStatus = "running"
	RunFinished RunStatus = "finished"
	RunFailed   RunStatus = "failed"
)

// Run describes one simulation and its final acceptance statistics.
type Run struct {
	VersionedRecord
	ID             string    `json:"id"`
	CreatedAt      time.Time `json:"created_at"`
	Status         RunStatus `json:"status"`
	Error          string    `json:"error,omitempty"`
	Lengths        [4]int    `json:"lengths"`
	Boundary       string    `json:"boundary"`
	Actions        []string  `json:"actions"`
	Integrator     string    `json:"integrator"`
	Steps          int       `json:"steps"`
	Seed           int64     `json:"seed"`
	Trajectories   int       `json:"trajectories"`
	Configurations int       `json:"configurations"`
	AcceptanceRate float64   `json:"acceptance_rate"`
	HDiff          float64   `json:"hdiff"`
}

type Trajectory struct {
	VersionedRecord
	RunID         string  `json:"run_id"`
	Index         int     `json:"index"`
	Configuration int     `json:"configuration"`
	Measured      bool    `json:"measured"`
	Accepted      bool    `json:"accepted"`
	Forced        bool    `json:"forced,omitempty"`
	HStart        float64 `json:"h_start"`
	HEnd          float64 `json:"h_end"`
	DeltaH        float64 `json:"delta_h"`
	DurationNS    int64   `json:"duration_ns"`
}

// Measurement is the accumulated series of one observable in a run.
type Measurement struct {
	VersionedRecord
	RunID  string    `json:"run_id"`
	ID     int       `json:"id"`
	Name   string    `json:"name"`
	Values []float64 `json:"values"`
	Mean   float64   `json:"mean"`
	Error  float64   `json:"error"`
}

// Configuration is a gauge field snapshot. Links holds 18 reals per link,
// row-major real and imaginary parts.
type Configuration struct {
	VersionedRecord
	RunID         string    `json:"run_id"`
	Configuration int       `json:"configuration"`
	Lengths       [4]int    `json:"lengths"`
	Links         []float64 `json:"links"`
}

package stats

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

const sweepsDir = "sweeps"

// SweepPoint is one run of a parameter scan.
type SweepPoint struct {
	Value          float64            `json:"value"`
	RunID          string             `json:"run_id"`
	AcceptanceRate float64            `json:"acceptance_rate"`
	Results        []MeasurementEntry `json:"results,omitempty"`
}

// Sweep scans one action parameter across several runs.
type Sweep struct {
	ID             string       `json:"id"`
	Action         int          `json:"action"`
	Parameter      string       `json:"parameter"`
	Values         []float64    `json:"values"`
	StartedAtUTC   string       `json:"started_at_utc,omitempty"`
	CompletedAtUTC string       `json:"completed_at_utc,omitempty"`
	Points         []SweepPoint `json:"points,omitempty"`
}

func WriteSweep(baseDir string, sw Sweep) error {
	if sw.ID == "" {
		return fmt.Errorf("sweep id is required")
	}
	path := sweepPath(baseDir, sw.ID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return writeJSON(path, sw)
}

func ReadSweep(baseDir, id string) (Sweep, bool, error) {
	if id == "" {
		return Sweep{}, false, fmt.Errorf("sweep id is required")
	}
	var sw Sweep
	ok, err := readJSON(sweepPath(baseDir, id), &sw)
	return sw, ok, err
}

func ListSweeps(baseDir string) ([]Sweep, error) {
	root := filepath.Join(baseDir, sweepsDir)
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return []Sweep{}, nil
		}
		return nil, err
	}

	sweeps := make([]Sweep, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		sw, ok, err := ReadSweep(baseDir, entry.Name())
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		sweeps = append(sweeps, sw)
	}
	sort.Slice(sweeps, func(i, j int) bool {
		switch {
		case sweeps[i].StartedAtUTC == sweeps[j].StartedAtUTC:
			return sweeps[i].ID < sweeps[j].ID
		case sweeps[i].StartedAtUTC == "":
			return false
		case sweeps[j].StartedAtUTC == "":
			return true
		default:
			return sweeps[i].StartedAtUTC > sweeps[j].StartedAtUTC
		}
	})
	return sweeps, nil
}

func sweepPath(baseDir, id string) string {
	return filepath.Join(baseDir, sweepsDir, id, "sweep.json")
}

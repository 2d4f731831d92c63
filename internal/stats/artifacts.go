package stats

import (
	"cmp"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

// runIndexFile is a JSON Lines log with one RunIndexEntry per write.
const runIndexFile = "run_index.jsonl"

type ActionConfig struct {
	Name   string         `json:"name"`
	ID     int            `json:"id"`
	Params map[string]any `json:"params,omitempty"`
}

type MeasurementConfig struct {
	Name   string         `json:"name"`
	ID     int            `json:"id"`
	Params map[string]any `json:"params,omitempty"`
}

// RunConfig is the resolved parameter set a run was started with.
type RunConfig struct {
	RunID          string              `json:"run_id"`
	Lengths        [4]int              `json:"lengths"`
	Boundary       string              `json:"boundary"`
	FermionBC      [4]int              `json:"fermion_bc"`
	Workers        int                 `json:"workers"`
	Actions        []ActionConfig      `json:"actions"`
	Integrator     string              `json:"integrator"`
	Length         float64             `json:"length"`
	Steps          int                 `json:"steps"`
	NestedSteps    int                 `json:"nested_steps,omitempty"`
	Lambda         float64             `json:"lambda,omitempty"`
	Seed           int64               `json:"seed"`
	InitState      string              `json:"init_state"`
	Equilibration  int                 `json:"equilibration"`
	Measured       int                 `json:"measured"`
	AutoCorrection bool                `json:"auto_correction"`
	Reunitarize    bool                `json:"reunitarize"`
	CountConfigs   bool                `json:"count_configurations,omitempty"`
	Measurements   []MeasurementConfig `json:"measurements,omitempty"`
	StoreKind      string              `json:"store_kind"`
}

type TrajectoryEntry struct {
	Index         int     `json:"index"`
	Configuration int     `json:"configuration"`
	Measured      bool    `json:"measured"`
	Accepted      bool    `json:"accepted"`
	DeltaH        float64 `json:"delta_h"`
}

type MeasurementEntry struct {
	ID      int       `json:"id"`
	Name    string    `json:"name"`
	Values  []float64 `json:"values"`
	Summary Summary   `json:"summary"`
}

type RunSummary struct {
	RunID          string  `json:"run_id"`
	Trajectories   int     `json:"trajectories"`
	Configurations int     `json:"configurations"`
	AcceptanceRate float64 `json:"acceptance_rate"`
	HDiff          float64 `json:"hdiff"`
	ExpHDiff       float64 `json:"exp_hdiff"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
}

type RunArtifacts struct {
	Config       RunConfig          `json:"config"`
	Trajectories []TrajectoryEntry  `json:"trajectories"`
	Measurements []MeasurementEntry `json:"measurements"`
	Summary      RunSummary         `json:"summary"`
}

// RunIndexEntry is one line of the run log: how the run was set up and where
// its Markov chain ended.
type RunIndexEntry struct {
	RunID        string `json:"run_id"`
	CreatedAtUTC string `json:"created_at_utc"`

	Lengths    [4]int   `json:"lengths"`
	Boundary   string   `json:"boundary"`
	Actions    []string `json:"actions"`
	Integrator string   `json:"integrator"`
	Seed       int64    `json:"seed"`

	Trajectories   int     `json:"trajectories"`
	Configurations int     `json:"configurations"`
	AcceptanceRate float64 `json:"acceptance_rate"`
	HDiff          float64 `json:"hdiff"`
}

var artifactFiles = []string{"config.json", "trajectories.csv", "measurements.json", "summary.json"}

func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Config.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, "config.json"), artifacts.Config); err != nil {
		return "", err
	}
	if err := WriteTrajectorySeries(runDir, artifacts.Trajectories); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "measurements.json"), artifacts.Measurements); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "summary.json"), artifacts.Summary); err != nil {
		return "", err
	}

	return runDir, nil
}

// AppendRunIndex records entry at the end of the run log. An entry for a run
// that is already indexed supersedes the earlier one.
func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}
	line, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(baseDir, runIndexFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ListRunIndex replays the run log and returns the latest entry of every
// run, newest first. Runs created at the same instant are ordered by their
// last write.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	f, err := os.Open(filepath.Join(baseDir, runIndexFile))
	if errors.Is(err, fs.ErrNotExist) {
		return []RunIndexEntry{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	type logged struct {
		RunIndexEntry
		line int
	}
	var runs []logged
	pos := make(map[string]int)
	dec := json.NewDecoder(f)
	for line := 0; ; line++ {
		var e RunIndexEntry
		if err := dec.Decode(&e); err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("run index line %d: %w", line+1, err)
		}
		if i, ok := pos[e.RunID]; ok {
			runs[i] = logged{e, line}
			continue
		}
		pos[e.RunID] = len(runs)
		runs = append(runs, logged{e, line})
	}

	slices.SortFunc(runs, func(a, b logged) int {
		if c := cmp.Compare(b.CreatedAtUTC, a.CreatedAtUTC); c != 0 {
			return c
		}
		return cmp.Compare(b.line, a.line)
	})
	out := make([]RunIndexEntry, len(runs))
	for i, r := range runs {
		out[i] = r.RunIndexEntry
	}
	return out, nil
}

// ExportRunArtifacts copies the artifact files of a run into outDir/runID.
// Files the run never wrote are skipped.
func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}
	src := filepath.Join(baseDir, runID)
	if info, err := os.Stat(src); err != nil {
		return "", err
	} else if !info.IsDir() {
		return "", fmt.Errorf("run %s: %s is not a directory", runID, src)
	}

	run := os.DirFS(src)
	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}
	for _, name := range artifactFiles {
		data, err := fs.ReadFile(run, name)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("export %s/%s: %w", runID, name, err)
		}
		if err := os.WriteFile(filepath.Join(dst, name), data, 0o644); err != nil {
			return "", err
		}
	}
	return dst, nil
}

func ReadRunConfig(baseDir, runID string) (RunConfig, bool, error) {
	var cfg RunConfig
	ok, err := readJSON(filepath.Join(baseDir, runID, "config.json"), &cfg)
	return cfg, ok, err
}

func WriteRunConfig(baseDir, runID string, cfg RunConfig) error {
	if strings.TrimSpace(runID) == "" {
		return fmt.Errorf("run id is required")
	}
	if strings.TrimSpace(cfg.RunID) == "" {
		cfg.RunID = strings.TrimSpace(runID)
	}
	if cfg.RunID != strings.TrimSpace(runID) {
		return fmt.Errorf("run config run id mismatch: got=%s want=%s", cfg.RunID, strings.TrimSpace(runID))
	}
	runDir := filepath.Join(baseDir, runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return err
	}
	return writeJSON(filepath.Join(runDir, "config.json"), cfg)
}

func ReadMeasurements(baseDir, runID string) ([]MeasurementEntry, bool, error) {
	var ms []MeasurementEntry
	ok, err := readJSON(filepath.Join(baseDir, runID, "measurements.json"), &ms)
	return ms, ok, err
}

func ReadRunSummary(baseDir, runID string) (RunSummary, bool, error) {
	var s RunSummary
	ok, err := readJSON(filepath.Join(baseDir, runID, "summary.json"), &s)
	return s, ok, err
}

func WriteTrajectorySeries(runDir string, trajectories []TrajectoryEntry) error {
	path := filepath.Join(runDir, "trajectories.csv")
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"index", "configuration", "measured", "accepted", "delta_h"}); err != nil {
		return err
	}
	for _, t := range trajectories {
		if err := writer.Write([]string{
			strconv.Itoa(t.Index),
			strconv.Itoa(t.Configuration),
			strconv.FormatBool(t.Measured),
			strconv.FormatBool(t.Accepted),
			strconv.FormatFloat(t.DeltaH, 'g', -1, 64),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func ReadTrajectorySeries(baseDir, runID string) ([]TrajectoryEntry, bool, error) {
	path := filepath.Join(baseDir, runID, "trajectories.csv")
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return []TrajectoryEntry{}, true, nil
		}
		return nil, false, err
	}
	if len(header) < 5 {
		return nil, false, fmt.Errorf("trajectory series header must have 5 columns")
	}

	series := make([]TrajectoryEntry, 0, 128)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, err
		}
		entry, err := parseTrajectoryRow(record)
		if err != nil {
			return nil, false, err
		}
		series = append(series, entry)
	}
	return series, true, nil
}

func parseTrajectoryRow(record []string) (TrajectoryEntry, error) {
	if len(record) < 5 {
		return TrajectoryEntry{}, fmt.Errorf("trajectory series row must have 5 columns")
	}
	var (
		e   TrajectoryEntry
		err error
	)
	if e.Index, err = strconv.Atoi(record[0]); err != nil {
		return TrajectoryEntry{}, err
	}
	if e.Configuration, err = strconv.Atoi(record[1]); err != nil {
		return TrajectoryEntry{}, err
	}
	if e.Measured, err = strconv.ParseBool(record[2]); err != nil {
		return TrajectoryEntry{}, err
	}
	if e.Accepted, err = strconv.ParseBool(record[3]); err != nil {
		return TrajectoryEntry{}, err
	}
	if e.DeltaH, err = strconv.ParseFloat(record[4], 64); err != nil {
		return TrajectoryEntry{}, err
	}
	return e, nil
}

func readJSON(path string, out any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, err
	}
	return true, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

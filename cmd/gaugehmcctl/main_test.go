package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gaugehmc/internal/stats"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	origWD, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	workdir := t.TempDir()
	if err := os.Chdir(workdir); err != nil {
		t.Fatalf("chdir tempdir: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Chdir(origWD)
	})
	return workdir
}

func captureStdout(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	orig := stdout
	stdout = &buf
	t.Cleanup(func() {
		stdout = orig
	})
	return &buf
}

const smallParams = `lattice:
  lengths: [2, 2, 2, 2]
  workers: 2
actions:
  - name: plaquette_rotating
    beta: 3.0
    omega: 0.01
integrator:
  name: omelyan
  steps: 6
updater:
  seed: 5
measurements:
  - name: plaquette_energy
  - name: angular_momentum
`

func writeParams(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "params.yaml")
	if err := os.WriteFile(path, []byte(smallParams), 0o644); err != nil {
		t.Fatalf("write params: %v", err)
	}
	return path
}

func TestRunCommandCreatesArtifacts(t *testing.T) {
	workdir := chdirTemp(t)
	out := captureStdout(t)
	paramsPath := writeParams(t, workdir)

	args := []string{"run", "--params", paramsPath, "--equilibration", "1", "--measured", "3", "--log-level", "error"}
	if err := run(context.Background(), args); err != nil {
		t.Fatalf("run command: %v", err)
	}
	if !strings.Contains(out.String(), "run completed") {
		t.Fatalf("unexpected output: %s", out.String())
	}

	entries, err := stats.ListRunIndex(artifactsDir)
	if err != nil {
		t.Fatalf("list run index: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one indexed run, got %d", len(entries))
	}
	runID := entries[0].RunID
	if entries[0].Trajectories != 4 {
		t.Fatalf("expected 4 trajectories, got %d", entries[0].Trajectories)
	}
	for _, file := range []string{"config.json", "trajectories.csv", "measurements.json", "summary.json"} {
		if _, err := os.Stat(filepath.Join(artifactsDir, runID, file)); err != nil {
			t.Fatalf("expected artifact %s: %v", file, err)
		}
	}

	out.Reset()
	if err := run(context.Background(), []string{"measurements", "--latest", "--log-level", "error"}); err != nil {
		t.Fatalf("measurements command: %v", err)
	}
	if !strings.Contains(out.String(), "angular_momentum(2)") {
		t.Fatalf("unexpected measurements output: %s", out.String())
	}

	out.Reset()
	if err := run(context.Background(), []string{"trajectories", "--run-id", runID, "--json", "--log-level", "error"}); err != nil {
		t.Fatalf("trajectories command: %v", err)
	}
	var items []map[string]any
	if err := json.Unmarshal(out.Bytes(), &items); err != nil {
		t.Fatalf("decode trajectories json: %v", err)
	}
	if len(items) != 4 {
		t.Fatalf("expected 4 trajectories, got %d", len(items))
	}

	out.Reset()
	if err := run(context.Background(), []string{"export", "--latest"}); err != nil {
		t.Fatalf("export command: %v", err)
	}
	if _, err := os.Stat(filepath.Join(exportsDir, runID, "summary.json")); err != nil {
		t.Fatalf("expected exported summary: %v", err)
	}
}

func TestRunsCommand(t *testing.T) {
	workdir := chdirTemp(t)
	out := captureStdout(t)

	if err := run(context.Background(), []string{"runs"}); err != nil {
		t.Fatalf("runs command: %v", err)
	}
	if !strings.Contains(out.String(), "no runs found") {
		t.Fatalf("unexpected empty runs output: %s", out.String())
	}

	paramsPath := writeParams(t, workdir)
	if err := run(context.Background(), []string{"run", "--params", paramsPath, "--equilibration", "0", "--measured", "1", "--log-level", "error"}); err != nil {
		t.Fatalf("run command: %v", err)
	}
	out.Reset()
	if err := run(context.Background(), []string{"runs", "--limit", "5"}); err != nil {
		t.Fatalf("runs command: %v", err)
	}
	if !strings.Contains(out.String(), "lattice=2x2x2x2") || !strings.Contains(out.String(), "integrator=omelyan") {
		t.Fatalf("unexpected runs output: %s", out.String())
	}
}

func TestSweepCommand(t *testing.T) {
	workdir := chdirTemp(t)
	out := captureStdout(t)
	paramsPath := writeParams(t, workdir)

	args := []string{"sweep", "--params", paramsPath, "--param", "omega", "--values", "0, 0.02", "--sweep-id", "scan", "--log-level", "error"}
	if err := run(context.Background(), args); err != nil {
		t.Fatalf("sweep command: %v", err)
	}
	if !strings.Contains(out.String(), "points=2") {
		t.Fatalf("unexpected sweep output: %s", out.String())
	}
	if _, ok, err := stats.ReadSweep(artifactsDir, "scan"); err != nil || !ok {
		t.Fatalf("expected stored sweep: ok=%t err=%v", ok, err)
	}

	if err := run(context.Background(), []string{"sweep", "--params", paramsPath, "--param", "omega", "--values", "x"}); err == nil {
		t.Fatal("expected parse error for bad sweep values")
	}
}

func TestListCommand(t *testing.T) {
	out := captureStdout(t)
	if err := run(context.Background(), []string{"list"}); err != nil {
		t.Fatalf("list command: %v", err)
	}
	for _, want := range []string{"plaquette_rotating", "force_gradient", "angular_momentum", "memory"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("list output misses %s: %s", want, out.String())
		}
	}
}

func TestCommandErrors(t *testing.T) {
	chdirTemp(t)
	captureStdout(t)
	if err := run(context.Background(), nil); err == nil || !strings.Contains(err.Error(), "usage") {
		t.Fatalf("expected usage error, got %v", err)
	}
	if err := run(context.Background(), []string{"bogus"}); err == nil {
		t.Fatal("expected unknown command error")
	}
	if err := run(context.Background(), []string{"export"}); err == nil {
		t.Fatal("expected export without run id to fail")
	}
	if err := run(context.Background(), []string{"runs", "--limit", "0"}); err == nil {
		t.Fatal("expected limit validation error")
	}
	if err := run(context.Background(), []string{"init", "--log-format", "xml"}); err == nil {
		t.Fatal("expected log format error")
	}
	if err := run(context.Background(), []string{"init", "--store", "redis"}); err == nil {
		t.Fatal("expected unsupported store error")
	}
}

func TestNewLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(&buf, "warn", "auto")
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	logger.Info("hidden")
	logger.Warn("shown", "k", 1)
	line := strings.TrimSpace(buf.String())
	if strings.Contains(line, "hidden") || !strings.HasPrefix(line, "{") {
		t.Fatalf("expected a single JSON warn line, got %q", line)
	}
	if _, err := newLogger(&buf, "loud", "text"); err == nil {
		t.Fatal("expected bad level error")
	}
}

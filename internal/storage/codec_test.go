package storage

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"gaugehmc/internal/model"
)

func TestDecodeRunFixture(t *testing.T) {
	data, err := os.ReadFile(fixturePath("run_v1.json"))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}

	run, err := DecodeRun(data)
	if err != nil {
		t.Fatalf("decode fixture: %v", err)
	}
	if run.ID != "run-fixture-1" {
		t.Fatalf("unexpected run id: %s", run.ID)
	}
	if run.Lengths != [4]int{4, 4, 4, 4} || run.Boundary != "torus_dirichlet" {
		t.Fatalf("unexpected lattice: %+v %s", run.Lengths, run.Boundary)
	}
	if run.Status != model.RunFinished || run.Configurations != 24 {
		t.Fatalf("unexpected run summary: %+v", run)
	}
	if run.CreatedAt.Year() != 2026 {
		t.Fatalf("unexpected created_at: %v", run.CreatedAt)
	}
}

func TestDecodeRunRejectsNewerSchema(t *testing.T) {
	data, err := os.ReadFile(fixturePath("run_v2.json"))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	if _, err := DecodeRun(data); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected version mismatch, got %v", err)
	}
}

func TestConfigurationPayloadKeepsLinksExact(t *testing.T) {
	in := model.Configuration{
		VersionedRecord: Versioned(),
		RunID:           "r1",
		Configuration:   12,
		Lengths:         [4]int{2, 2, 2, 2},
		Links:           []float64{1, 0, 0.1 + 0.2, -1e-17, 3.141592653589793},
	}
	data, err := EncodeConfiguration(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := DecodeConfiguration(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("configuration changed: %+v != %+v", out, in)
	}
}

func TestDecodeTrajectoriesChecksEveryRecord(t *testing.T) {
	ts := []model.Trajectory{
		{VersionedRecord: Versioned(), RunID: "r", Index: 0},
		{VersionedRecord: model.VersionedRecord{SchemaVersion: 1}, RunID: "r", Index: 1},
	}
	data, err := EncodeTrajectories(ts)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := DecodeTrajectories(data); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected version mismatch, got %v", err)
	}
}

func fixturePath(name string) string {
	return filepath.Join("..", "..", "testdata", "fixtures", name)
}

package storage

import (
	"errors"

	"github.com/sugawarayuuta/sonnet"

	"gaugehmc/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

// Versioned is the version stamp new records are written with.
func Versioned() model.VersionedRecord {
	return model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion}
}

func EncodeRun(r model.Run) ([]byte, error) {
	return sonnet.Marshal(r)
}

func DecodeRun(data []byte) (model.Run, error) {
	var run model.Run
	if err := sonnet.Unmarshal(data, &run); err != nil {
		return model.Run{}, err
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return model.Run{}, err
	}
	return run, nil
}

func EncodeTrajectories(ts []model.Trajectory) ([]byte, error) {
	return sonnet.Marshal(ts)
}

func DecodeTrajectories(data []byte) ([]model.Trajectory, error) {
	var ts []model.Trajectory
	if err := sonnet.Unmarshal(data, &ts); err != nil {
		return nil, err
	}
	for _, t := range ts {
		if err := checkVersion(t.VersionedRecord); err != nil {
			return nil, err
		}
	}
	return ts, nil
}

func EncodeMeasurements(ms []model.Measurement) ([]byte, error) {
	return sonnet.Marshal(ms)
}

func DecodeMeasurements(data []byte) ([]model.Measurement, error) {
	var ms []model.Measurement
	if err := sonnet.Unmarshal(data, &ms); err != nil {
		return nil, err
	}
	for _, m := range ms {
		if err := checkVersion(m.VersionedRecord); err != nil {
			return nil, err
		}
	}
	return ms, nil
}

func EncodeConfiguration(c model.Configuration) ([]byte, error) {
	return sonnet.Marshal(c)
}

func DecodeConfiguration(data []byte) (model.Configuration, error) {
	var c model.Configuration
	if err := sonnet.Unmarshal(data, &c); err != nil {
		return model.Configuration{}, err
	}
	if err := checkVersion(c.VersionedRecord); err != nil {
		return model.Configuration{}, err
	}
	return c, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}

package params

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sugawarayuuta/sonnet"
	"gopkg.in/yaml.v3"
)

// Decode parses a YAML or JSON parameter document into a raw map.
func Decode(data []byte, format string) (map[string]any, error) {
	var raw map[string]any
	switch strings.ToLower(format) {
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	case "json":
		if err := sonnet.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

// LoadFile reads a parameter file; the extension picks the format.
func LoadFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	return Decode(data, ext)
}

// LoadRun reads a parameter file straight into a RunRecord.
func LoadRun(path string) (RunRecord, error) {
	raw, err := LoadFile(path)
	if err != nil {
		return RunRecord{}, err
	}
	return ConvertRun(raw), nil
}

package params

import "errors"

var (
	ErrUnsupportedKind   = errors.New("params: unsupported record kind")
	ErrUnsupportedFormat = errors.New("params: unsupported file format")
)

func asString(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	default:
		return "", false
	}
}

func asInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case int8:
		return int(x), true
	case int16:
		return int(x), true
	case int32:
		return int(x), true
	case int64:
		return int(x), true
	case uint64:
		return int(x), true
	case float64:
		return int(x), true
	case float32:
		return int(x), true
	default:
		return 0, false
	}
}

func asFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint64:
		return float64(x), true
	default:
		return 0, false
	}
}

func asBool(v any) (bool, bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	case int:
		return x != 0, true
	default:
		return false, false
	}
}

func asFloat64s(v any) ([]float64, bool) {
	switch xs := v.(type) {
	case []float64:
		return append([]float64(nil), xs...), true
	case []any:
		out := make([]float64, 0, len(xs))
		for _, item := range xs {
			f, ok := asFloat64(item)
			if !ok {
				return nil, false
			}
			out = append(out, f)
		}
		return out, true
	default:
		return nil, false
	}
}

func asInts(v any) ([]int, bool) {
	switch xs := v.(type) {
	case []int:
		return append([]int(nil), xs...), true
	case []any:
		out := make([]int, 0, len(xs))
		for _, item := range xs {
			n, ok := asInt(item)
			if !ok {
				return nil, false
			}
			out = append(out, n)
		}
		return out, true
	default:
		return nil, false
	}
}

func asRecord(v any) (Record, bool) {
	switch x := v.(type) {
	case Record:
		return x, true
	case map[string]any:
		return Record(x), true
	case map[any]any:
		out := make(Record, len(x))
		for k, item := range x {
			key, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[key] = item
		}
		return out, true
	default:
		return nil, false
	}
}

func asRecords(v any) ([]Record, bool) {
	xs, ok := v.([]any)
	if !ok {
		if recs, ok := v.([]Record); ok {
			return recs, true
		}
		return nil, false
	}
	out := make([]Record, 0, len(xs))
	for _, item := range xs {
		r, ok := asRecord(item)
		if !ok {
			return nil, false
		}
		out = append(out, r)
	}
	return out, true
}

// Package params turns loosely typed parameter maps (decoded from YAML or
// JSON files, or built in code) into typed run records with defaults.
package params

// Record is a parameter block. Unknown keys are ignored by every reader and
// missing or mistyped keys fall back to the supplied default.
type Record map[string]any

func (r Record) Float(key string, def float64) float64 {
	if f, ok := asFloat64(r[key]); ok {
		return f
	}
	return def
}

func (r Record) Int(key string, def int) int {
	if n, ok := asInt(r[key]); ok {
		return n
	}
	return def
}

func (r Record) Bool(key string, def bool) bool {
	if b, ok := asBool(r[key]); ok {
		return b
	}
	return def
}

func (r Record) String(key, def string) string {
	if s, ok := asString(r[key]); ok && s != "" {
		return s
	}
	return def
}

func (r Record) Floats(key string) ([]float64, bool) {
	return asFloat64s(r[key])
}

func (r Record) Ints(key string) ([]int, bool) {
	return asInts(r[key])
}

// Sub returns the nested block under key, or an empty record.
func (r Record) Sub(key string) Record {
	if sub, ok := asRecord(r[key]); ok {
		return sub
	}
	return Record{}
}

func (r Record) Records(key string) []Record {
	recs, _ := asRecords(r[key])
	return recs
}

func (r Record) Has(key string) bool {
	_, ok := r[key]
	return ok
}

// Clone is a shallow copy.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

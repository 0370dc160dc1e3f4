package model

import (
	"encoding/json"
	"math"
)

// NormalizeNumbers converts json.Number and whole floats into int64 so that
// decoded values render as "42" rather than "42.0" in templates.
func NormalizeNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return normalizeFloat(f)
		}
		return t.String()
	case float64:
		return normalizeFloat(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = NormalizeNumbers(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = NormalizeNumbers(e)
		}
		return out
	default:
		return v
	}
}

func normalizeFloat(f float64) any {
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return int64(f)
	}
	return f
}

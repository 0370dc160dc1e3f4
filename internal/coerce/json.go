package coerce

import (
	"encoding/json"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	hjson "github.com/hjson/hjson-go/v4"
)

// EmbeddedJSON finds a JSON object or array inside free text, such as a
// fenced code block or a reply with prose around it. Malformed JSON is
// repaired first; Hjson is the lenient fallback.
func EmbeddedJSON(text string) (any, bool) {
	candidate, ok := jsonSpan(text)
	if !ok {
		return nil, false
	}
	if v, ok := decodeJSON(candidate); ok {
		return v, true
	}

	if repaired, err := jsonrepair.RepairJSON(candidate); err == nil {
		if v, ok := decodeJSON(repaired); ok && isContainer(v) {
			return v, true
		}
	}

	var loose any
	if err := hjson.Unmarshal([]byte(candidate), &loose); err == nil && isContainer(loose) {
		// round trip through encoding/json so numbers follow the package policy
		data, err := json.Marshal(loose)
		if err == nil {
			if v, ok := decodeJSON(string(data)); ok {
				return v, true
			}
		}
	}
	return nil, false
}

// EmbeddedObject is EmbeddedJSON restricted to objects
func EmbeddedObject(text string) (map[string]any, bool) {
	v, ok := EmbeddedJSON(text)
	if !ok {
		return nil, false
	}
	m, ok := v.(map[string]any)
	return m, ok
}

// EmbeddedList is EmbeddedJSON restricted to arrays
func EmbeddedList(text string) ([]any, bool) {
	v, ok := EmbeddedJSON(text)
	if !ok {
		return nil, false
	}
	list, ok := v.([]any)
	return list, ok
}

func jsonSpan(text string) (string, bool) {
	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return "", false
	}
	closer := "}"
	if text[start] == '[' {
		closer = "]"
	}
	end := strings.LastIndex(text, closer)
	if end <= start {
		// unterminated; let the repair step close it
		return text[start:], true
	}
	return text[start : end+1], true
}

func isContainer(v any) bool {
	switch v.(type) {
	case map[string]any, []any:
		return true
	}
	return false
}

package prompt

import (
	"encoding/json"
	"reflect"
	"strings"

	"agentsurvey/internal/model"
)

// PriorValue looks a path up in a prior answer. A bare name or a leading
// "answer" step addresses the answer itself; comment, generated_tokens,
// question_text and question_name address those fields; any other step
// walks into the answer. Unanswered priors never resolve.
func PriorValue(prior model.PriorAnswer, segs []Segment) (any, bool) {
	if prior == nil || !prior.IsAnswered() {
		return nil, false
	}
	if len(segs) > 0 && !segs[0].IsIndex {
		switch segs[0].Key {
		case "answer":
			segs = segs[1:]
		case "comment", "generated_tokens", "question_text", "question_name":
			return Walk(prior.Attr(segs[0].Key), segs[1:])
		}
	}
	return Walk(prior.Attr("answer"), segs)
}

// Walk follows segs through maps and lists. Any miss, including an index
// out of range, reports false.
func Walk(v any, segs []Segment) (any, bool) {
	cur := v
	for _, s := range segs {
		if cur == nil {
			return nil, false
		}
		if s.IsIndex {
			list, ok := AsList(cur)
			if !ok {
				if str, isStr := cur.(string); isStr {
					list, ok = ParseList(str)
				}
			}
			if !ok || s.Index < 0 || s.Index >= len(list) {
				return nil, false
			}
			cur = list[s.Index]
			continue
		}
		rv := reflect.ValueOf(cur)
		if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		elem := rv.MapIndex(reflect.ValueOf(s.Key).Convert(rv.Type().Key()))
		if !elem.IsValid() {
			return nil, false
		}
		cur = elem.Interface()
	}
	if cur == nil {
		return nil, false
	}
	return cur, true
}

// AsList accepts any slice type, including driver-specific ones such as bson arrays
func AsList(v any) ([]any, bool) {
	if list, ok := v.([]any); ok {
		return list, true
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil, false
	}
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// ParseList reads a JSON list written out as a string
func ParseList(s string) ([]any, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "[") {
		return nil, false
	}
	var list []any
	if err := json.Unmarshal([]byte(s), &list); err != nil {
		return nil, false
	}
	return model.NormalizeNumbers(list).([]any), true
}

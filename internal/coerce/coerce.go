// Package coerce holds the single string-to-value policy shared by reply
// parsing and every repair heuristic:
//
//   - surrounding whitespace is trimmed
//   - one pair of matching quotes (", ' or `) is stripped
//   - comma-grouped thousands ("1,234.5") are numbers
//   - whole numbers become int64, other numbers float64
//   - JSON arrays, objects, true, false and null are decoded
//   - anything else stays a string
package coerce

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"

	"agentsurvey/internal/model"
)

var (
	plainNumber    = regexp.MustCompile(`^[-+]?(\d+\.?\d*|\.\d+)([eE][-+]?\d+)?$`)
	groupedNumber  = regexp.MustCompile(`^[-+]?\d{1,3}(,\d{3})+(\.\d+)?$`)
	embeddedNumber = regexp.MustCompile(`(?:^|[^\w.,])([-+]?(?:\d{1,3}(?:,\d{3})+|\d+)(?:\.\d+)?)`)
	listBullet     = regexp.MustCompile(`^(?:[-*•]\s+|\d+[.)]\s+)`)
)

// Unquote trims whitespace and strips one pair of matching quotes
func Unquote(s string) string {
	t := strings.TrimSpace(s)
	if len(t) >= 2 {
		first, last := t[0], t[len(t)-1]
		if first == last && (first == '"' || first == '\'' || first == '`') {
			t = strings.TrimSpace(t[1 : len(t)-1])
		}
	}
	return t
}

// Text applies the policy's quoting rules but never changes the type
func Text(s string) string {
	return Unquote(s)
}

// Scalar converts s according to the package policy
func Scalar(s string) any {
	t := Unquote(s)
	if t == "" {
		return ""
	}
	if n, ok := parseNumber(t); ok {
		return n
	}
	switch t[0] {
	case '[', '{':
		if v, ok := decodeJSON(t); ok {
			return v
		}
	}
	switch t {
	case "true":
		return true
	case "false":
		return false
	case "null":
		return nil
	}
	return t
}

func parseNumber(t string) (any, bool) {
	if groupedNumber.MatchString(t) {
		t = strings.ReplaceAll(t, ",", "")
	} else if !plainNumber.MatchString(t) {
		return nil, false
	}
	f, err := strconv.ParseFloat(t, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return nil, false
	}
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return int64(f), true
	}
	return f, true
}

func decodeJSON(t string) (any, bool) {
	dec := json.NewDecoder(strings.NewReader(t))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	if dec.More() {
		return nil, false
	}
	return model.NormalizeNumbers(v), true
}

// Number converts v to a float64 when the policy reads it as a number
func Number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		if parsed, ok := parseNumber(Unquote(n)); ok {
			return Number(parsed)
		}
	}
	return 0, false
}

// Int converts v to an int when it is a whole number
func Int(v any) (int, bool) {
	f, ok := Number(v)
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

// ExtractNumber returns the first number appearing in free text
func ExtractNumber(text string) (any, bool) {
	m := embeddedNumber.FindStringSubmatch(text)
	if m == nil {
		return nil, false
	}
	return parseNumber(m[1])
}

// ExtractInt returns the first whole number appearing in free text
func ExtractInt(text string) (int, bool) {
	n, ok := ExtractNumber(text)
	if !ok {
		return 0, false
	}
	return Int(n)
}

// SplitList splits a delimited list. A JSON array is decoded as-is. Otherwise
// items are separated by newlines or semicolons, or by commas when there is
// a single line. Commas inside quotes or digit groups do not split.
func SplitList(text string) []any {
	t := strings.TrimSpace(text)
	if strings.HasPrefix(t, "[") {
		if v, ok := decodeJSON(t); ok {
			if list, ok := v.([]any); ok {
				return list
			}
		}
		t = strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(t, "["), "]"))
	}

	parts := splitOutsideQuotes(t, func(s string, i int) bool {
		return s[i] == '\n' || s[i] == ';'
	})
	if len(parts) <= 1 {
		parts = splitOutsideQuotes(t, func(s string, i int) bool {
			return s[i] == ',' && !isDigitGroupComma(s, i)
		})
	}

	var out []any
	for _, p := range parts {
		p = listBullet.ReplaceAllString(strings.TrimSpace(p), "")
		if p == "" {
			continue
		}
		out = append(out, Scalar(p))
	}
	return out
}

func splitOutsideQuotes(s string, isSep func(string, int) bool) []string {
	var parts []string
	var quote byte
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		if c == '"' || c == '\'' {
			if i == start || strings.TrimSpace(s[start:i]) == "" {
				quote = c
			}
			continue
		}
		if isSep(s, i) {
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}

func isDigitGroupComma(s string, i int) bool {
	if i == 0 || !isDigit(s[i-1]) || i+3 >= len(s) {
		return false
	}
	if !isDigit(s[i+1]) || !isDigit(s[i+2]) || !isDigit(s[i+3]) {
		return false
	}
	return i+4 == len(s) || !isDigit(s[i+4])
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

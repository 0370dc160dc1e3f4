package assembler

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// repr renders a value the way the templates print it: strings quoted inside
// containers, True/False, None, maps with sorted keys
func repr(v any) string {
	return format(v, false)
}

func format(v any, nested bool) string {
	switch t := v.(type) {
	case nil:
		if nested {
			return "None"
		}
		return ""
	case string:
		if nested {
			return "'" + t + "'"
		}
		return t
	case bool:
		if t {
			return "True"
		}
		return "False"
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			break
		}
		parts := make([]string, rv.Len())
		for i := range parts {
			parts[i] = format(rv.Index(i).Interface(), true)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case reflect.Map:
		pairs := make([]string, 0, rv.Len())
		for _, k := range rv.MapKeys() {
			pairs = append(pairs, format(k.Interface(), true)+": "+format(rv.MapIndex(k).Interface(), true))
		}
		sort.Strings(pairs)
		return "{" + strings.Join(pairs, ", ") + "}"
	}
	return fmt.Sprint(v)
}

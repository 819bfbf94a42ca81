// internal/rules/coercion.go
package rules

import (
	"fmt"
	"reflect"
	"strconv"
)

/*
 * Value normalization for condition comparison.
 *
 * Facts are built in Go (int age, []string codes) while rule values usually
 * arrive through JSON (float64, []any). normalize() maps both onto the JSON
 * shape so structural equality and membership work across the two sources.
 *
 * Type rules:
 *   - int, int32, int64, float32, float64: float64
 *   - []string, []any: []any of normalized elements
 *   - map[string]any: map with normalized values
 *   - everything else: unchanged
 *
 * Booleans are deliberately not numeric: true never equals 1.
 */

// normalize converts value to its JSON-decoded equivalent.
func normalize(value any) any {
	switch v := value.(type) {
	case int:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case float32:
		return float64(v)
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = normalize(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[k] = normalize(e)
		}
		return out
	default:
		return value
	}
}

// deepEqual compares two normalized values.
func deepEqual(a, b any) bool {
	return reflect.DeepEqual(a, b)
}

// asNumbers attempts to convert both values to float64 for numeric comparison.
// Returns converted values and success flag.
func asNumbers(a, b any) (float64, float64, bool) {
	na, oka := toFloat64(a)
	nb, okb := toFloat64(b)
	return na, nb, oka && okb
}

// toFloat64 converts value to float64 if it's a numeric type.
func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// textForm renders a fact as text for substring matching.
func textForm(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

package filter

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Match evaluates the expression against document metadata.
// In-lists require the document value (scalar or list) to intersect the
// filter values; equality compares case-insensitively after coercion to
// string, except id clauses which compare exactly. A missing metadata
// field never matches a clause.
func (e Expression) Match(meta map[string]any) bool {
	for _, c := range e.conditions {
		if !c.Match(meta) {
			return false
		}
	}
	return true
}

// Match evaluates a single clause against document metadata.
func (c Condition) Match(meta map[string]any) bool {
	raw, ok := meta[c.key]
	if !ok || raw == nil {
		return false
	}
	docValues := coerceAll(raw)
	for _, want := range c.values {
		w := want.String()
		for _, got := range docValues {
			if got == w || (!c.caseSensitive && strings.EqualFold(got, w)) {
				return true
			}
		}
	}
	return false
}

// Filter returns the elements whose metadata matches, preserving order.
func Filter[T any](e Expression, items []T, meta func(T) map[string]any) []T {
	if e.IsEmpty() {
		return items
	}
	out := make([]T, 0, len(items))
	for _, it := range items {
		if e.Match(meta(it)) {
			out = append(out, it)
		}
	}
	return out
}

func coerceAll(v any) []string {
	switch x := v.(type) {
	case []any:
		out := make([]string, 0, len(x))
		for _, e := range x {
			out = append(out, coerceAll(e)...)
		}
		return out
	case []int:
		out := make([]string, len(x))
		for i, n := range x {
			out[i] = strconv.Itoa(n)
		}
		return out
	case []int64:
		out := make([]string, len(x))
		for i, n := range x {
			out[i] = strconv.FormatInt(n, 10)
		}
		return out
	case []string:
		return x
	default:
		return []string{coerce(v)}
	}
}

func coerce(v any) string {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case float64:
		return formatFloat(x)
	case float32:
		return formatFloat(float64(x))
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return formatFloat(f)
		}
		return x.String()
	default:
		return fmt.Sprint(v)
	}
}

func formatFloat(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

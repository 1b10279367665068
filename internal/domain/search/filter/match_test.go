package filter

import "testing"

func TestMatch_CaseInsensitiveEquality(t *testing.T) {
	eq, _ := NewEqual("type", String("theory"))
	expr, _ := NewExpression(eq)

	tests := []struct {
		name string
		meta map[string]any
		want bool
	}{
		{"exact", map[string]any{"type": "theory"}, true},
		{"upper", map[string]any{"type": "THEORY"}, true},
		{"padded", map[string]any{"type": " Theory "}, true},
		{"other", map[string]any{"type": "programming"}, false},
		{"missing", map[string]any{}, false},
		{"nil", map[string]any{"type": nil}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := expr.Match(tt.meta); got != tt.want {
				t.Errorf("Match() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMatch_NumericCoercion(t *testing.T) {
	eq, _ := NewEqual("marks", Int(5))
	expr, _ := NewExpression(eq)

	for _, v := range []any{5, int64(5), float64(5), "5"} {
		if !expr.Match(map[string]any{"marks": v}) {
			t.Errorf("marks %T(%v) should match 5", v, v)
		}
	}
	if expr.Match(map[string]any{"marks": 5.5}) {
		t.Error("5.5 must not match 5")
	}
}

func TestMatch_AllClausesRequired(t *testing.T) {
	in, _ := NewIn("year_bs", []Value{Int(2079)})
	eq, _ := NewEqual("topic", String("functions"))
	expr, _ := NewExpression(in, eq)

	if !expr.Match(map[string]any{"year_bs": 2079, "topic": "functions"}) {
		t.Error("expected match")
	}
	if expr.Match(map[string]any{"year_bs": 2079, "topic": "structures"}) {
		t.Error("topic mismatch must fail")
	}
}

func TestFilter_PreservesOrder(t *testing.T) {
	eq, _ := NewEqual("unit", Int(2))
	expr, _ := NewExpression(eq)

	type doc struct {
		id   string
		meta map[string]any
	}
	docs := []doc{
		{"a", map[string]any{"unit": 2}},
		{"b", map[string]any{"unit": 3}},
		{"c", map[string]any{"unit": 2}},
	}
	got := Filter(expr, docs, func(d doc) map[string]any { return d.meta })
	if len(got) != 2 || got[0].id != "a" || got[1].id != "c" {
		t.Errorf("Filter() = %v", got)
	}
}

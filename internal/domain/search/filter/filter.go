// Package filter holds the compiled metadata predicate shared by every store backend.
package filter

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxConditions is the maximum number of clauses in one expression.
const MaxConditions = 32

// Operator is the comparison a condition performs.
type Operator int

const (
	// OpEqual requires the document value to equal the single filter value.
	OpEqual Operator = iota
	// OpIn requires the document value to be one of the filter values.
	OpIn
)

// Value is a filter operand: either a string or an integer.
type Value struct {
	str     string
	num     int64
	numeric bool
}

// String creates a string operand.
func String(s string) Value { return Value{str: s} }

// Int creates an integer operand.
func Int(n int64) Value { return Value{num: n, numeric: true} }

// IsNumeric reports whether the operand is an integer.
func (v Value) IsNumeric() bool { return v.numeric }

// Int returns the integer operand (0 for strings).
func (v Value) Int() int64 { return v.num }

// String returns the operand as plain text.
func (v Value) String() string {
	if v.numeric {
		return strconv.FormatInt(v.num, 10)
	}
	return v.str
}

// Literal renders the operand for an expression: quoted strings, bare numbers.
func (v Value) Literal() string {
	if v.numeric {
		return strconv.FormatInt(v.num, 10)
	}
	return "'" + literalEscaper.Replace(v.str) + "'"
}

// Any returns the operand as a plain Go value (int64 or string).
func (v Value) Any() any {
	if v.numeric {
		return v.num
	}
	return v.str
}

var literalEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

// Condition is a single clause on one metadata field.
type Condition struct {
	key    string
	op     Operator
	values []Value
	// caseSensitive makes Match compare strings exactly (ids).
	caseSensitive bool
}

// NewEqual creates a `key == value` clause.
func NewEqual(key string, v Value) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	return Condition{key: key, op: OpEqual, values: []Value{v}}, nil
}

// NewIn creates a `key in [values]` clause. values must be non-empty.
func NewIn(key string, values []Value) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	if len(values) == 0 {
		return Condition{}, fmt.Errorf("in-list for key %q is empty", key)
	}
	return Condition{key: key, op: OpIn, values: append([]Value(nil), values...)}, nil
}

// Key returns the metadata field name.
func (c Condition) Key() string { return c.key }

// Op returns the comparison operator.
func (c Condition) Op() Operator { return c.op }

// Values returns the operands; exactly one for OpEqual.
func (c Condition) Values() []Value { return c.values }

// IsNumeric reports whether every operand is an integer.
func (c Condition) IsNumeric() bool {
	for _, v := range c.values {
		if !v.numeric {
			return false
		}
	}
	return len(c.values) > 0
}

// String renders the clause: `key == 'v'` or `key in [1, 2]`.
func (c Condition) String() string {
	if c.op == OpEqual {
		return c.key + " == " + c.values[0].Literal()
	}
	parts := make([]string, len(c.values))
	for i, v := range c.values {
		parts[i] = v.Literal()
	}
	return c.key + " in [" + strings.Join(parts, ", ") + "]"
}

// Expression is a conjunction of conditions. The zero value matches everything.
type Expression struct {
	conditions []Condition
}

// NewExpression validates and creates an Expression.
func NewExpression(conditions ...Condition) (Expression, error) {
	if len(conditions) > MaxConditions {
		return Expression{}, fmt.Errorf("too many conditions (max %d)", MaxConditions)
	}
	return Expression{conditions: conditions}, nil
}

// Conditions returns the clauses in compilation order.
func (e Expression) Conditions() []Condition { return e.conditions }

// IsEmpty reports whether the expression matches everything.
func (e Expression) IsEmpty() bool { return len(e.conditions) == 0 }

// String renders the boolean expression; empty means match all.
func (e Expression) String() string {
	parts := make([]string, len(e.conditions))
	for i, c := range e.conditions {
		parts[i] = c.String()
	}
	return strings.Join(parts, " and ")
}

// Map renders the structured form: field -> value, or field -> {"in": [values]}.
func (e Expression) Map() map[string]any {
	m := make(map[string]any, len(e.conditions))
	for _, c := range e.conditions {
		if c.op == OpEqual {
			m[c.key] = c.values[0].Any()
			continue
		}
		vals := make([]any, len(c.values))
		for i, v := range c.values {
			vals[i] = v.Any()
		}
		m[c.key] = map[string]any{"in": vals}
	}
	return m
}

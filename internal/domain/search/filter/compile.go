package filter

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/pastq/internal/domain/question"
)

// rule is how a schema field turns into a clause.
type rule int

const (
	ruleEqual rule = iota
	ruleIn
	ruleSubject
	ruleSkip
)

// rules maps every schema field to its clause-emission rule.
// init panics if a schema field is missing here.
var rules = map[question.Field]rule{
	question.FieldID:             ruleEqual,
	question.FieldSubject:        ruleSubject,
	question.FieldYearAD:         ruleIn,
	question.FieldYearBS:         ruleIn,
	question.FieldQuestionText:   ruleSkip,
	question.FieldType:           ruleEqual,
	question.FieldFormat:         ruleEqual,
	question.FieldMarks:          ruleEqual,
	question.FieldTopic:          ruleEqual,
	question.FieldUnit:           ruleEqual,
	question.FieldQuestionNumber: ruleEqual,
	question.FieldSource:         ruleEqual,
	question.FieldSemester:       ruleEqual,
	question.FieldMetadataOnly:   ruleSkip,
}

func init() {
	if err := checkRules(); err != nil {
		panic(err)
	}
}

func checkRules() error {
	for _, s := range question.Fields {
		if _, ok := rules[s.Name]; !ok {
			return fmt.Errorf("filter: schema field %q has no compile rule", s.Name)
		}
	}
	if len(rules) != len(question.Fields) {
		return fmt.Errorf("filter: %d compile rules for %d schema fields", len(rules), len(question.Fields))
	}
	return nil
}

// CompileOptions tunes compilation for the target collection.
type CompileOptions struct {
	// SubjectScoped skips the subject clause because the collection holds one subject.
	SubjectScoped bool
}

// Compile turns a filter into an expression. Clauses follow schema
// declaration order; unset fields and empty lists emit nothing.
func Compile(f *question.Filter, opts CompileOptions) Expression {
	var conds []Condition
	for _, s := range question.Fields {
		raw, ok := f.Value(s.Name)
		if !ok {
			continue
		}
		switch rules[s.Name] {
		case ruleSkip:
			continue
		case ruleSubject:
			if opts.SubjectScoped {
				continue
			}
			subject, _ := raw.(string)
			conds = append(conds, Condition{
				key: string(s.Name), op: OpEqual,
				values: []Value{String(strings.ToLower(subject))},
			})
		case ruleIn:
			years, _ := raw.([]int)
			vals := make([]Value, len(years))
			for i, y := range years {
				vals[i] = Int(int64(y))
			}
			conds = append(conds, Condition{key: string(s.Name), op: OpIn, values: vals})
		case ruleEqual:
			v := scalar(raw)
			if !v.IsNumeric() {
				v = String(question.CanonicalString(s.Name, v.String()))
			}
			conds = append(conds, Condition{
				key: string(s.Name), op: OpEqual, values: []Value{v},
				caseSensitive: s.Name == question.FieldID,
			})
		}
	}
	return Expression{conditions: conds}
}

func scalar(raw any) Value {
	switch v := raw.(type) {
	case int:
		return Int(int64(v))
	case int64:
		return Int(v)
	case string:
		return String(v)
	default:
		return String(fmt.Sprint(v))
	}
}

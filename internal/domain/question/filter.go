package question

import (
	"errors"
	"fmt"
	"slices"
)

// MinYearBS is the earliest Bikram Sambat year the question bank holds.
const MinYearBS = 2075

// MinYearAD is MinYearBS converted to the Gregorian calendar.
const MinYearAD = 2018

// Filter is the structured form of one user question.
// Optional fields are nil when the question does not mention them, so
// "not mentioned" never collapses into a zero value.
type Filter struct {
	ID             *string       `json:"id,omitempty"`
	Subject        Subject       `json:"subject"`
	YearAD         []int         `json:"year_ad,omitempty"`
	YearBS         []int         `json:"year_bs,omitempty"`
	QuestionText   *string       `json:"question_text,omitempty"`
	Type           *QuestionType `json:"type,omitempty"`
	Format         *Format       `json:"format,omitempty"`
	Marks          *int          `json:"marks,omitempty"`
	Topic          *Topic        `json:"topic,omitempty"`
	Unit           *int          `json:"unit,omitempty"`
	QuestionNumber *string       `json:"question_number,omitempty"`
	Source         *Source       `json:"source,omitempty"`
	Semester       *Semester     `json:"semester,omitempty"`
	MetadataOnly   bool          `json:"metadata_only"`
}

// Value returns the value of a set field: string, int or []int.
// ok is false for unset fields, empty lists and the metadata_only flag.
func (f *Filter) Value(name Field) (value any, ok bool) {
	switch name {
	case FieldID:
		return strPtr(f.ID)
	case FieldSubject:
		if f.Subject == "" {
			return nil, false
		}
		return string(f.Subject), true
	case FieldYearAD:
		return intList(f.YearAD)
	case FieldYearBS:
		return intList(f.YearBS)
	case FieldQuestionText:
		return strPtr(f.QuestionText)
	case FieldType:
		return enumPtr(f.Type)
	case FieldFormat:
		return enumPtr(f.Format)
	case FieldMarks:
		return intPtr(f.Marks)
	case FieldTopic:
		return enumPtr(f.Topic)
	case FieldUnit:
		return intPtr(f.Unit)
	case FieldQuestionNumber:
		return strPtr(f.QuestionNumber)
	case FieldSource:
		return enumPtr(f.Source)
	case FieldSemester:
		return enumPtr(f.Semester)
	default:
		return nil, false
	}
}

// SetFields returns the set fields in declaration order, excluding metadata_only.
func (f *Filter) SetFields() []Field {
	var out []Field
	for _, s := range Fields {
		if _, ok := f.Value(s.Name); ok {
			out = append(out, s.Name)
		}
	}
	return out
}

// Validate checks required fields and enumerations.
func (f *Filter) Validate() error {
	if f.Subject == "" {
		return errors.New("subject is required")
	}
	checks := []error{
		validEnum(&f.Subject, Subjects, FieldSubject),
		validEnum(f.Type, QuestionTypes, FieldType),
		validEnum(f.Format, Formats, FieldFormat),
		validEnum(f.Topic, Topics, FieldTopic),
		validEnum(f.Source, Sources, FieldSource),
		validEnum(f.Semester, Semesters, FieldSemester),
	}
	return errors.Join(checks...)
}

// ClampYears drops years before the given floors and removes duplicates,
// keeping the order the user gave. A floor <= 0 disables the check.
func (f *Filter) ClampYears(minBS, minAD int) {
	f.YearBS = clampYears(f.YearBS, minBS)
	f.YearAD = clampYears(f.YearAD, minAD)
}

func clampYears(years []int, floor int) []int {
	if len(years) == 0 {
		return nil
	}
	out := make([]int, 0, len(years))
	for _, y := range years {
		if floor > 0 && y < floor {
			continue
		}
		if slices.Contains(out, y) {
			continue
		}
		out = append(out, y)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func validEnum[T ~string](v *T, allowed []T, field Field) error {
	if v == nil || slices.Contains(allowed, *v) {
		return nil
	}
	return fmt.Errorf("%s: %q is not one of %v", field, *v, allowed)
}

func strPtr(p *string) (any, bool) {
	if p == nil || *p == "" {
		return nil, false
	}
	return *p, true
}

func enumPtr[T ~string](p *T) (any, bool) {
	if p == nil || *p == "" {
		return nil, false
	}
	return string(*p), true
}

func intPtr(p *int) (any, bool) {
	if p == nil {
		return nil, false
	}
	return *p, true
}

func intList(v []int) (any, bool) {
	if len(v) == 0 {
		return nil, false
	}
	return slices.Clone(v), true
}

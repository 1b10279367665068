package question

import (
	"encoding/json"
	"slices"
	"strings"
	"testing"
)

func TestFilter_SetFieldsDeclarationOrder(t *testing.T) {
	f := Filter{
		Semester: ptr(SemesterFirst),
		Topic:    ptr(TopicFunctions),
		YearBS:   []int{2080},
		Subject:  SubjectComputerProgramming,
		ID:       ptr("q-1"),
	}

	got := f.SetFields()
	want := []Field{FieldID, FieldSubject, FieldYearBS, FieldTopic, FieldSemester}
	if !slices.Equal(got, want) {
		t.Errorf("SetFields() = %v, want %v", got, want)
	}
}

func TestFilter_ValueUnsetSentinels(t *testing.T) {
	f := Filter{Marks: ptr(0), QuestionNumber: ptr("")}

	if v, ok := f.Value(FieldMarks); !ok || v != 0 {
		t.Errorf("explicit zero marks must count as set, got %v %v", v, ok)
	}
	if _, ok := f.Value(FieldQuestionNumber); ok {
		t.Error("empty question number must be unset")
	}
	if _, ok := f.Value(FieldUnit); ok {
		t.Error("nil unit must be unset")
	}
	if _, ok := f.Value(FieldMetadataOnly); ok {
		t.Error("metadata_only never reports a value")
	}
}

func TestFilter_Validate(t *testing.T) {
	tests := []struct {
		name    string
		filter  Filter
		wantErr string
	}{
		{"ok", Filter{Subject: SubjectComputerProgramming, Type: ptr(TypeTheory)}, ""},
		{"missing subject", Filter{}, "subject is required"},
		{"unknown subject", Filter{Subject: "physics"}, "subject"},
		{"bad topic", Filter{Subject: SubjectComputerProgramming, Topic: ptr(Topic("graphs"))}, "topic"},
		{"bad semester", Filter{Subject: SubjectComputerProgramming, Semester: ptr(Semester("ninth"))}, "semester"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.filter.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestFilter_ClampYears(t *testing.T) {
	f := Filter{YearBS: []int{2074, 2076, 2075, 2076}, YearAD: []int{2010}}
	f.ClampYears(MinYearBS, MinYearAD)

	if !slices.Equal(f.YearBS, []int{2076, 2075}) {
		t.Errorf("YearBS = %v", f.YearBS)
	}
	if f.YearAD != nil {
		t.Errorf("YearAD = %v, want nil once every year is dropped", f.YearAD)
	}
}

func TestFilter_JSONOmitsUnset(t *testing.T) {
	f := Filter{Subject: SubjectComputerProgramming, YearBS: []int{2079}}
	data, err := json.Marshal(f)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(data)
	if strings.Contains(s, "topic") || strings.Contains(s, "marks") {
		t.Errorf("unset fields leaked: %s", s)
	}
	if !strings.Contains(s, `"year_bs":[2079]`) {
		t.Errorf("year_bs missing: %s", s)
	}
}

func TestParseEnums(t *testing.T) {
	if v, err := ParseSubject("Computer Programming"); err != nil || v != SubjectComputerProgramming {
		t.Errorf("ParseSubject = %q, %v", v, err)
	}
	if v, err := ParseTopic(" FILE_HANDLING "); err != nil || v != TopicFileHandling {
		t.Errorf("ParseTopic = %q, %v", v, err)
	}
	if _, err := ParseSource("supplementary"); err == nil {
		t.Error("expected error for unknown source")
	}
}

func TestFields_Exhaustive(t *testing.T) {
	if len(Fields) != 14 {
		t.Fatalf("expected 14 schema fields, got %d", len(Fields))
	}
	for _, s := range MetadataFields() {
		if s.Kind == KindText || s.Kind == KindFlag {
			t.Errorf("%s must not be stored as metadata", s.Name)
		}
	}
	if s, ok := SpecOf(FieldSubject); !ok || !s.Required {
		t.Error("subject must be required")
	}
}

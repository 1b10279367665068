// Package question defines the question bank's filter schema, documents and classifier.
package question

// Field names a filter schema field. The string is both the JSON key the
// extractor emits and the metadata key stored with every question.
type Field string

// Filter schema fields in declaration order.
const (
	FieldID             Field = "id"
	FieldSubject        Field = "subject"
	FieldYearAD         Field = "year_ad"
	FieldYearBS         Field = "year_bs"
	FieldQuestionText   Field = "question_text"
	FieldType           Field = "type"
	FieldFormat         Field = "format"
	FieldMarks          Field = "marks"
	FieldTopic          Field = "topic"
	FieldUnit           Field = "unit"
	FieldQuestionNumber Field = "question_number"
	FieldSource         Field = "source"
	FieldSemester       Field = "semester"
	FieldMetadataOnly   Field = "metadata_only"
)

// Kind is the value shape of a field.
type Kind int

const (
	// KindString is a free-form scalar string.
	KindString Kind = iota
	// KindEnum is a string restricted to Spec.Values.
	KindEnum
	// KindInt is a scalar integer.
	KindInt
	// KindIntList is a list of integers.
	KindIntList
	// KindText is free text matched against the question body.
	KindText
	// KindFlag is a boolean classification flag.
	KindFlag
)

// Spec describes one field of the filter schema.
type Spec struct {
	Name        Field
	Kind        Kind
	Required    bool
	Values      []string
	Description string
}

// Fields is the exhaustive filter schema in declaration order.
var Fields = []Spec{
	{Name: FieldID, Kind: KindString, Description: "Unique identifier of a single question"},
	{
		Name: FieldSubject, Kind: KindEnum, Required: true, Values: enumStrings(Subjects),
		Description: "Subject of the exam paper",
	},
	{Name: FieldYearAD, Kind: KindIntList, Description: "Exam years in AD (Gregorian), e.g. [2022, 2023]"},
	{Name: FieldYearBS, Kind: KindIntList, Description: "Exam years in BS (Bikram Sambat), e.g. [2079, 2080]"},
	{Name: FieldQuestionText, Kind: KindText, Description: "Keywords or text to look for inside the question itself"},
	{
		Name: FieldType, Kind: KindEnum, Values: enumStrings(QuestionTypes),
		Description: "Whether the question is theory or asks for a program",
	},
	{Name: FieldFormat, Kind: KindEnum, Values: enumStrings(Formats), Description: "Short or long answer question"},
	{Name: FieldMarks, Kind: KindInt, Description: "Marks allotted to the question"},
	{Name: FieldTopic, Kind: KindEnum, Values: enumStrings(Topics), Description: "Curriculum topic of the question"},
	{Name: FieldUnit, Kind: KindInt, Description: "Syllabus unit number"},
	{Name: FieldQuestionNumber, Kind: KindString, Description: "Question number on the paper, e.g. 1a, 5b, 4"},
	{
		Name: FieldSource, Kind: KindEnum, Values: enumStrings(Sources),
		Description: "Regular exam or back (re-sit) exam",
	},
	{Name: FieldSemester, Kind: KindEnum, Values: enumStrings(Semesters), Description: "Semester of the exam"},
	{
		Name: FieldMetadataOnly, Kind: KindFlag,
		Description: "True when the query can be answered with exact metadata filters only",
	},
}

// SpecOf returns the schema entry for name.
func SpecOf(name Field) (Spec, bool) {
	for _, s := range Fields {
		if s.Name == name {
			return s, true
		}
	}
	return Spec{}, false
}

// MetadataFields returns the fields stored as filterable metadata on documents.
func MetadataFields() []Spec {
	out := make([]Spec, 0, len(Fields))
	for _, s := range Fields {
		if s.Kind == KindText || s.Kind == KindFlag {
			continue
		}
		out = append(out, s)
	}
	return out
}

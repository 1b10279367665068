package question

import (
	"fmt"
	"slices"
	"strings"
)

// Subject is the academic subject a question bank covers.
type Subject string

// SubjectComputerProgramming is the only subject the bank serves.
const SubjectComputerProgramming Subject = "computer programming"

// QuestionType distinguishes theory from programming questions.
type QuestionType string

// Question types.
const (
	TypeTheory      QuestionType = "theory"
	TypeProgramming QuestionType = "programming"
)

// Format distinguishes short from long answer questions.
type Format string

// Answer formats.
const (
	FormatShort Format = "short"
	FormatLong  Format = "long"
)

// Source tells whether a question came from a regular or a back exam.
type Source string

// Exam sources.
const (
	SourceRegular Source = "regular"
	SourceBack    Source = "back"
)

// Semester is the semester the paper belongs to.
type Semester string

// Semesters.
const (
	SemesterFirst   Semester = "first"
	SemesterSecond  Semester = "second"
	SemesterThird   Semester = "third"
	SemesterFourth  Semester = "fourth"
	SemesterFifth   Semester = "fifth"
	SemesterSixth   Semester = "sixth"
	SemesterSeventh Semester = "seventh"
	SemesterEighth  Semester = "eighth"
)

// Topic is a curriculum chapter.
type Topic string

// Curriculum topics.
const (
	TopicProgrammingFundamentals  Topic = "programming_fundamentals"
	TopicAlgorithmAndFlowchart    Topic = "algorithm_and_flowchart"
	TopicIntroductionCProgramming Topic = "introduction_c_programming"
	TopicDataAndExpressions       Topic = "data_and_expressions"
	TopicInputOutput              Topic = "input_output"
	TopicControlStructures        Topic = "control_structures"
	TopicArraysStringsPointers    Topic = "arrays_strings_pointers"
	TopicFunctions                Topic = "functions"
	TopicStructures               Topic = "structures"
	TopicFileHandling             Topic = "file_handling"
	TopicOOPOverview              Topic = "oop_overview"
)

// Allowed values per enumerated field, in presentation order.
var (
	Subjects      = []Subject{SubjectComputerProgramming}
	QuestionTypes = []QuestionType{TypeTheory, TypeProgramming}
	Formats       = []Format{FormatShort, FormatLong}
	Sources       = []Source{SourceRegular, SourceBack}
	Semesters     = []Semester{
		SemesterFirst, SemesterSecond, SemesterThird, SemesterFourth,
		SemesterFifth, SemesterSixth, SemesterSeventh, SemesterEighth,
	}
	Topics = []Topic{
		TopicProgrammingFundamentals, TopicAlgorithmAndFlowchart, TopicIntroductionCProgramming,
		TopicDataAndExpressions, TopicInputOutput, TopicControlStructures,
		TopicArraysStringsPointers, TopicFunctions, TopicStructures,
		TopicFileHandling, TopicOOPOverview,
	}
)

// ParseSubject normalizes case and validates.
func ParseSubject(raw string) (Subject, error) { return parseEnum(FieldSubject, raw, Subjects) }

// ParseQuestionType normalizes case and validates.
func ParseQuestionType(raw string) (QuestionType, error) {
	return parseEnum(FieldType, raw, QuestionTypes)
}

// ParseFormat normalizes case and validates.
func ParseFormat(raw string) (Format, error) { return parseEnum(FieldFormat, raw, Formats) }

// ParseSource normalizes case and validates.
func ParseSource(raw string) (Source, error) { return parseEnum(FieldSource, raw, Sources) }

// ParseSemester normalizes case and validates.
func ParseSemester(raw string) (Semester, error) { return parseEnum(FieldSemester, raw, Semesters) }

// ParseTopic normalizes case and validates.
func ParseTopic(raw string) (Topic, error) { return parseEnum(FieldTopic, raw, Topics) }

func parseEnum[T ~string](field Field, raw string, allowed []T) (T, error) {
	v := T(strings.ToLower(strings.TrimSpace(raw)))
	if slices.Contains(allowed, v) {
		return v, nil
	}
	return "", fmt.Errorf("%s: %q is not one of %v", field, raw, allowed)
}

func enumStrings[T ~string](values []T) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}

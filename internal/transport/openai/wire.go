package openai

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/pastq/internal/domain/question"
)

// wireFilter is the model's raw answer. Models routinely quote numbers or
// return a bare year where a list is expected; the flex types accept both.
type wireFilter struct {
	ID             flexString `json:"id"`
	Subject        flexString `json:"subject"`
	YearAD         flexInts   `json:"year_ad"`
	YearBS         flexInts   `json:"year_bs"`
	QuestionText   flexString `json:"question_text"`
	Type           flexString `json:"type"`
	Format         flexString `json:"format"`
	Marks          flexInt    `json:"marks"`
	Topic          flexString `json:"topic"`
	Unit           flexInt    `json:"unit"`
	QuestionNumber flexString `json:"question_number"`
	Source         flexString `json:"source"`
	Semester       flexString `json:"semester"`
	MetadataOnly   flexBool   `json:"metadata_only"`
}

// decodeFilter parses the model output into a validated filter.
func decodeFilter(content string) (*question.Filter, error) {
	content = stripFence(content)
	if content == "" {
		return nil, errors.New("empty completion")
	}
	var w wireFilter
	if err := json.Unmarshal([]byte(content), &w); err != nil {
		return nil, fmt.Errorf("decode completion: %w", err)
	}
	return w.toFilter()
}

func (w *wireFilter) toFilter() (*question.Filter, error) {
	f := &question.Filter{
		ID:             w.ID.ptr(),
		YearAD:         w.YearAD,
		YearBS:         w.YearBS,
		QuestionText:   w.QuestionText.ptr(),
		Marks:          w.Marks.ptr(),
		Unit:           w.Unit.ptr(),
		QuestionNumber: w.QuestionNumber.ptr(),
		MetadataOnly:   bool(w.MetadataOnly),
	}

	var errs []error
	if p := w.Subject.ptr(); p == nil {
		errs = append(errs, errors.New("subject is required"))
	} else if v, err := question.ParseSubject(*p); err != nil {
		errs = append(errs, err)
	} else {
		f.Subject = v
	}
	f.Type = parseOptional(w.Type, question.ParseQuestionType, &errs)
	f.Format = parseOptional(w.Format, question.ParseFormat, &errs)
	f.Topic = parseOptional(w.Topic, question.ParseTopic, &errs)
	f.Source = parseOptional(w.Source, question.ParseSource, &errs)
	f.Semester = parseOptional(w.Semester, question.ParseSemester, &errs)

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if err := f.Validate(); err != nil {
		return nil, err //nolint:wrapcheck // already names the field
	}
	return f, nil
}

func parseOptional[T ~string](raw flexString, parse func(string) (T, error), errs *[]error) *T {
	p := raw.ptr()
	if p == nil {
		return nil
	}
	v, err := parse(*p)
	if err != nil {
		*errs = append(*errs, err)
		return nil
	}
	return &v
}

// stripFence removes a markdown code fence some OpenAI-compatible models add
// even when a JSON response format is requested.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// flexString accepts a string, a number or null. Empty strings count as unset.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	if isNull(b) {
		return nil
	}
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		*s = flexString(strings.TrimSpace(str))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected string, got %s", b)
	}
	*s = flexString(n.String())
	return nil
}

func (s flexString) ptr() *string {
	if s == "" || strings.EqualFold(string(s), "null") {
		return nil
	}
	v := string(s)
	return &v
}

// flexInt accepts an integer, an integral float, a numeric string or null.
type flexInt struct {
	v   int
	set bool
}

func (n *flexInt) UnmarshalJSON(b []byte) error {
	if isNull(b) {
		return nil
	}
	v, ok, err := parseInt(b)
	if err != nil {
		return err
	}
	n.v, n.set = v, ok
	return nil
}

func (n flexInt) ptr() *int {
	if !n.set {
		return nil
	}
	v := n.v
	return &v
}

// flexInts accepts a list of integers, a single integer, or null.
type flexInts []int

func (l *flexInts) UnmarshalJSON(b []byte) error {
	if isNull(b) {
		return nil
	}
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '[' {
		var raw []json.RawMessage
		if err := json.Unmarshal(b, &raw); err != nil {
			return fmt.Errorf("decode year list: %w", err)
		}
		out := make([]int, 0, len(raw))
		for _, r := range raw {
			v, ok, err := parseInt(r)
			if err != nil {
				return err
			}
			if ok {
				out = append(out, v)
			}
		}
		*l = out
		return nil
	}
	v, ok, err := parseInt(b)
	if err != nil {
		return err
	}
	if ok {
		*l = []int{v}
	}
	return nil
}

// flexBool accepts a boolean, "true"/"false" or null.
type flexBool bool

func (f *flexBool) UnmarshalJSON(b []byte) error {
	if isNull(b) {
		return nil
	}
	var v bool
	if err := json.Unmarshal(b, &v); err == nil {
		*f = flexBool(v)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("expected boolean, got %s", b)
	}
	v, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("expected boolean, got %q", s)
	}
	*f = flexBool(v)
	return nil
}

func parseInt(b []byte) (v int, ok bool, err error) {
	if isNull(b) {
		return 0, false, nil
	}
	var s string
	if json.Unmarshal(b, &s) == nil {
		s = strings.TrimSpace(s)
		if s == "" {
			return 0, false, nil
		}
		b = []byte(s)
	}
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return 0, false, fmt.Errorf("expected integer, got %s", b)
	}
	if f != float64(int(f)) {
		return 0, false, fmt.Errorf("expected integer, got %s", b)
	}
	return int(f), true, nil
}

func isNull(b []byte) bool {
	return bytes.Equal(bytes.TrimSpace(b), []byte("null"))
}

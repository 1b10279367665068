package question

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"math"
	"strconv"
	"strings"
)

// Metadata keys that are never part of a question's public metadata.
var vectorKeys = map[string]struct{}{
	"vector":    {},
	"__vector":  {},
	"embedding": {},
}

// Provenance metadata keys added at ingestion.
const (
	MetaCollection = "collection"
	MetaSourceLine = "source_line"
)

// textKey is the dataset key holding the question body.
const textKey = "question"

// Document is one stored exam question.
type Document struct {
	ID       string
	Text     string
	Metadata map[string]any
	Vector   []float32
}

// PublicMetadata returns a copy of the metadata without embedding fields.
func (d *Document) PublicMetadata() map[string]any {
	return StripVector(d.Metadata)
}

// StripVector copies m, dropping any raw embedding field.
func StripVector(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if _, drop := vectorKeys[strings.ToLower(k)]; drop {
			continue
		}
		out[k] = v
	}
	return out
}

// FromRecord converts one dataset object into a document.
// The "question" key becomes the text; every other key is kept as metadata.
// line is the 1-based position of the record in its dataset.
func FromRecord(record map[string]any, line int) (Document, error) {
	raw, ok := record[textKey]
	if !ok {
		return Document{}, fmt.Errorf("record %d: missing %q field", line, textKey)
	}
	text, ok := raw.(string)
	if !ok || strings.TrimSpace(text) == "" {
		return Document{}, fmt.Errorf("record %d: %q must be a non-empty string", line, textKey)
	}

	meta := make(map[string]any, len(record))
	for k, v := range record {
		if k == textKey {
			continue
		}
		if _, drop := vectorKeys[strings.ToLower(k)]; drop {
			continue
		}
		meta[k] = NormalizeValue(v)
	}
	Canonicalize(meta)
	meta[MetaSourceLine] = int64(line)

	doc := Document{Text: text, Metadata: meta}
	if id, ok := meta[string(FieldID)]; ok && id != nil {
		doc.ID = fmt.Sprint(id)
	}
	return doc, nil
}

// ParseDataset decodes a JSON array of question records.
func ParseDataset(data []byte) ([]Document, error) {
	var records []map[string]any
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode dataset: %w", err)
	}
	docs := make([]Document, 0, len(records))
	var errs []error
	for i, r := range records {
		doc, err := FromRecord(r, i+1)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		docs = append(docs, doc)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return docs, nil
}

// NormalizeValue turns integral JSON numbers into int64 so that metadata
// renders as 2079 rather than 2079.0. Lists are normalized element-wise.
func NormalizeValue(v any) any {
	switch x := v.(type) {
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1<<53 {
			return int64(x)
		}
		return x
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = NormalizeValue(e)
		}
		return out
	case map[string]any:
		out := maps.Clone(x)
		for k, e := range out {
			out[k] = NormalizeValue(e)
		}
		return out
	default:
		return v
	}
}

// Canonicalize rewrites schema fields in place into the form every store
// compares exactly: enum and code strings trimmed and lower-cased, ids as
// strings, integers as int64 (also inside year lists). Values that cannot
// be coerced are kept as they are. Non-schema keys are untouched.
func Canonicalize(meta map[string]any) {
	for _, s := range MetadataFields() {
		key := string(s.Name)
		v, ok := meta[key]
		if !ok || v == nil {
			continue
		}
		switch s.Kind {
		case KindEnum, KindString:
			str := strings.TrimSpace(scalarString(v))
			if s.Name != FieldID {
				str = strings.ToLower(str)
			}
			meta[key] = str
		case KindInt:
			meta[key] = canonicalInt(v)
		case KindIntList:
			if list, ok := v.([]any); ok {
				out := make([]any, len(list))
				for i, e := range list {
					out[i] = canonicalInt(e)
				}
				meta[key] = out
				continue
			}
			meta[key] = canonicalInt(v)
		}
	}
}

// CanonicalString is the stored form of a string value of field name.
func CanonicalString(name Field, v string) string {
	v = strings.TrimSpace(v)
	if name == FieldID {
		return v
	}
	return strings.ToLower(v)
}

func scalarString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1<<53 {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

func canonicalInt(v any) any {
	switch x := NormalizeValue(v).(type) {
	case int64:
		return x
	case int:
		return int64(x)
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64); err == nil {
			return n
		}
		return x
	default:
		return x
	}
}

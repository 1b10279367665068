package result

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/kailas-cloud/pastq/internal/domain/question"
)

func TestFromDocument_StripsVector(t *testing.T) {
	doc := &question.Document{
		ID:       "q1",
		Text:     "What is a pointer?",
		Metadata: map[string]any{"topic": "arrays_strings_pointers", "vector": []float32{0.1}},
		Vector:   []float32{0.1, 0.2},
	}
	r := FromDocument(doc, 0.9)

	if _, ok := r.Metadata["vector"]; ok {
		t.Error("vector leaked into metadata")
	}
	if r.Metadata["topic"] != "arrays_strings_pointers" {
		t.Errorf("topic = %v", r.Metadata["topic"])
	}
	if _, ok := doc.Metadata["vector"]; !ok {
		t.Error("source document must not be mutated")
	}
}

func TestEnvelope_JSONShape(t *testing.T) {
	env := Envelope{
		Results: []Result{{ID: "q1", Score: 0.5, Text: "t", Metadata: map[string]any{"unit": 1}}},
	}
	data, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(data)
	if s != `{"results":[{"text":"t","metadata":{"unit":1}}]}` {
		t.Errorf("unexpected JSON: %s", s)
	}

	env.FilterInfo = &FilterInfo{FilterExpression: "unit == 1", MetadataOnly: true}
	data, _ = json.Marshal(env)
	if !strings.Contains(string(data), `"filter_info":{"filter_expression":"unit == 1","metadata_only":true}`) {
		t.Errorf("filter_info missing: %s", data)
	}
}

func TestEnvelope_Truncate(t *testing.T) {
	tests := []struct {
		k, want int
	}{
		{0, 0}, {1, 1}, {3, 3}, {10, 3}, {-1, 0},
	}
	for _, tt := range tests {
		env := Envelope{Results: make([]Result, 3)}
		env.Truncate(tt.k)
		if len(env.Results) != tt.want {
			t.Errorf("Truncate(%d) -> %d results, want %d", tt.k, len(env.Results), tt.want)
		}
	}
}

package db

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/kailas-cloud/pastq/internal/domain/question"
)

// EncodeMetadata serializes metadata for backends that keep it as a JSON blob.
func EncodeMetadata(m map[string]any) ([]byte, error) {
	if m == nil {
		m = map[string]any{}
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	return data, nil
}

// DecodeMetadata parses a JSON metadata blob, keeping integers as int64.
func DecodeMetadata(data []byte) (map[string]any, error) {
	if len(data) == 0 {
		return map[string]any{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	for k, v := range m {
		m[k] = question.NormalizeValue(v)
	}
	return m, nil
}

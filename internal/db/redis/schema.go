package redis

import (
	"errors"
	"strconv"
)

// Hash fields reserved by the store. Metadata keys never start with "__".
const (
	fieldText     = "__text"
	fieldVector   = "__vector"
	fieldMetadata = "__metadata"
	fieldScore    = "__vector_score"
)

// fieldType enumerates the FT schema field types the store uses.
type fieldType int

const (
	fieldTag fieldType = iota
	fieldTextType
	fieldVectorHNSW
)

// indexField describes a single field in an FT index schema.
type indexField struct {
	Name string
	Type fieldType

	// VECTOR options
	Dim         int
	M           int // max edges per node
	EFConstruct int // build-time dynamic list size
}

// indexDefinition is a complete FT.CREATE definition over HASH keys.
type indexDefinition struct {
	Name   string
	Prefix string
	Fields []indexField
}

// Every metadata field is a TAG with the default "," separator, so a
// list-valued field stored as "2075,2076" matches @year_bs:{2076}.
func (s *Store) buildIndex(name string, dim int, fields []string, m, efConstruct int) *indexDefinition {
	def := &indexDefinition{
		Name:   s.indexName(name),
		Prefix: s.docPrefix(name),
	}
	for _, f := range fields {
		def.Fields = append(def.Fields, indexField{Name: f, Type: fieldTag})
	}
	// valkey-search does not index TEXT fields.
	if s.dialect == DialectRedis {
		def.Fields = append(def.Fields, indexField{Name: fieldText, Type: fieldTextType})
	}
	def.Fields = append(def.Fields, indexField{
		Name: fieldVector, Type: fieldVectorHNSW,
		Dim: dim, M: m, EFConstruct: efConstruct,
	})
	return def
}

func buildCreateArgs(idx *indexDefinition) ([]string, error) {
	if idx.Name == "" {
		return nil, errors.New("index name is required")
	}
	if len(idx.Fields) == 0 {
		return nil, errors.New("at least one field is required")
	}

	args := []string{idx.Name, "ON", "HASH"}
	if idx.Prefix != "" {
		args = append(args, "PREFIX", "1", idx.Prefix)
	}
	args = append(args, "SCHEMA")

	for i := range idx.Fields {
		fieldArgs, err := buildFieldArgs(&idx.Fields[i])
		if err != nil {
			return nil, err
		}
		args = append(args, fieldArgs...)
	}
	return args, nil
}

func buildFieldArgs(f *indexField) ([]string, error) {
	if f.Name == "" {
		return nil, errors.New("field name is required")
	}

	switch f.Type {
	case fieldTag:
		return []string{f.Name, "TAG", "SEPARATOR", ","}, nil
	case fieldTextType:
		return []string{f.Name, "TEXT"}, nil
	case fieldVectorHNSW:
		if f.Dim <= 0 {
			return nil, errors.New("vector DIM must be positive")
		}
		attrs := []string{
			"TYPE", "FLOAT32",
			"DIM", strconv.Itoa(f.Dim),
			"DISTANCE_METRIC", "COSINE",
		}
		if f.M > 0 {
			attrs = append(attrs, "M", strconv.Itoa(f.M))
		}
		if f.EFConstruct > 0 {
			attrs = append(attrs, "EF_CONSTRUCTION", strconv.Itoa(f.EFConstruct))
		}
		args := make([]string, 0, 4+len(attrs))
		args = append(args, f.Name, "VECTOR", "HNSW", strconv.Itoa(len(attrs)))
		return append(args, attrs...), nil
	default:
		return nil, errors.New("unknown field type")
	}
}

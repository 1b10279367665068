package db

import "github.com/kailas-cloud/pastq/internal/domain/search/filter"

// FilterQuery selects records by metadata only, in store-native order.
type FilterQuery struct {
	Collection string
	Filter     filter.Expression
	Limit      int
}

// KNNQuery is the input for vector similarity search.
// Backends that can push the filter down apply it before ranking.
type KNNQuery struct {
	Collection    string
	Filter        filter.Expression
	Vector        []float32
	K             int
	IncludeVector bool
}

// SearchResult is the output of a query.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single record hit. Score is a similarity in [0,1]
// for KNN queries and zero for filter queries.
type SearchEntry struct {
	ID       string
	Score    float64
	Text     string
	Metadata map[string]any
	Vector   []float32
}

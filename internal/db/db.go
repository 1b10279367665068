package db

import (
	"context"
	"strings"
	"time"

	"github.com/kailas-cloud/pastq/internal/domain"
)

// Store is the document store facade every backend implements.
//
//nolint:interfacebloat // facade; consumers depend on narrow sub-interfaces (ISP)
type Store interface {
	Pinger
	CollectionManager
	DocumentWriter
	Searcher
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks store connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CollectionManager handles the lifecycle of question collections.
type CollectionManager interface {
	EnsureCollection(ctx context.Context, def *CollectionDefinition) error
	HasCollection(ctx context.Context, name string) (bool, error)
	ListCollections(ctx context.Context) ([]string, error)
	DropCollection(ctx context.Context, name string) error
}

// DocumentWriter inserts and removes records.
type DocumentWriter interface {
	Insert(ctx context.Context, collection string, records []Record) error
	Delete(ctx context.Context, collection string, ids []string) error
}

// Searcher runs filter and similarity queries.
type Searcher interface {
	QueryByFilter(ctx context.Context, q *FilterQuery) (*SearchResult, error)
	QueryBySimilarity(ctx context.Context, q *KNNQuery) (*SearchResult, error)
	// SupportsFilterQuery reports whether QueryByFilter works without a vector.
	SupportsFilterQuery() bool
}

// KVStore is the optional key-value capability used by the embedding cache.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// CollectionDefinition describes the collection a backend must provision.
type CollectionDefinition struct {
	Name       string
	Dimensions int
	// Fields are the metadata keys the backend should index for filtering.
	Fields []string
	// HNSW tuning; zero selects backend defaults.
	HNSWM           int
	HNSWEFConstruct int
}

// Record is one question as persisted.
type Record struct {
	ID       string
	Text     string
	Vector   []float32
	Metadata map[string]any
}

// IsValidIdentifier returns true if s matches [a-zA-Z0-9_:-]+.
func IsValidIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		isAlpha := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		isDigit := r >= '0' && r <= '9'
		isSpecial := r == '_' || r == ':' || r == '-'
		if !isAlpha && !isDigit && !isSpecial {
			return false
		}
	}
	return true
}

// IsValidCollectionName reports whether s can name a collection on every
// backend. Store keys are laid out as "<prefix><collection>:<id>", so a name
// may not contain ':' (it would nest inside another collection's keyspace)
// and may not be the reserved cache segment.
func IsValidCollectionName(s string) bool {
	return IsValidIdentifier(s) && !strings.ContainsRune(s, ':') && s != domain.CacheSegment
}

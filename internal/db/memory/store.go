// Package memory is an in-process db.Store for tests and local runs.
// Filters are evaluated client-side and similarity is brute-force cosine.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/kailas-cloud/pastq/internal/db"
)

// Compile-time checks.
var (
	_ db.Store   = (*Store)(nil)
	_ db.KVStore = (*Store)(nil)
)

type collection struct {
	dim     int
	order   []string
	records map[string]db.Record
}

// Store keeps collections and key-value pairs in memory.
type Store struct {
	mu          sync.RWMutex
	collections map[string]*collection
	kv          map[string][]byte
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		collections: make(map[string]*collection),
		kv:          make(map[string][]byte),
	}
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// WaitForReady always succeeds.
func (s *Store) WaitForReady(context.Context, time.Duration) error { return nil }

// Close is a no-op.
func (s *Store) Close() {}

// EnsureCollection creates the collection if absent.
func (s *Store) EnsureCollection(_ context.Context, def *db.CollectionDefinition) error {
	if !db.IsValidCollectionName(def.Name) {
		return fmt.Errorf("%w %q", db.ErrInvalidCollectionName, def.Name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[def.Name]; !ok {
		s.collections[def.Name] = &collection{dim: def.Dimensions, records: make(map[string]db.Record)}
	}
	return nil
}

// HasCollection reports whether the collection exists.
func (s *Store) HasCollection(_ context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.collections[name]
	return ok, nil
}

// ListCollections returns collection names sorted.
func (s *Store) ListCollections(context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.collections)), nil
}

// DropCollection removes a collection and its records.
func (s *Store) DropCollection(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[name]; !ok {
		return db.ErrCollectionNotFound
	}
	delete(s.collections, name)
	return nil
}

// Insert stores records, replacing any with the same ID in place.
func (s *Store) Insert(_ context.Context, name string, records []db.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[name]
	if !ok {
		return db.ErrCollectionNotFound
	}
	for i, r := range records {
		if r.ID == "" {
			return fmt.Errorf("record %d: id is required", i)
		}
		if c.dim > 0 && len(r.Vector) != c.dim {
			return fmt.Errorf("record %s: vector has %d dimensions, want %d", r.ID, len(r.Vector), c.dim)
		}
	}
	for _, r := range records {
		if _, exists := c.records[r.ID]; !exists {
			c.order = append(c.order, r.ID)
		}
		r.Metadata = maps.Clone(r.Metadata)
		r.Vector = slices.Clone(r.Vector)
		c.records[r.ID] = r
	}
	return nil
}

// Delete removes records by ID. Missing IDs are ignored.
func (s *Store) Delete(_ context.Context, name string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[name]
	if !ok {
		return db.ErrCollectionNotFound
	}
	for _, id := range ids {
		delete(c.records, id)
	}
	c.order = slices.DeleteFunc(c.order, func(id string) bool {
		_, ok := c.records[id]
		return !ok
	})
	return nil
}

// SupportsFilterQuery returns true.
func (s *Store) SupportsFilterQuery() bool { return true }

// QueryByFilter returns matching records in insertion order.
func (s *Store) QueryByFilter(_ context.Context, q *db.FilterQuery) (*db.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[q.Collection]
	if !ok {
		return nil, db.ErrCollectionNotFound
	}

	res := &db.SearchResult{}
	for _, id := range c.order {
		r := c.records[id]
		if !q.Filter.Match(r.Metadata) {
			continue
		}
		res.Total++
		if len(res.Entries) < q.Limit {
			res.Entries = append(res.Entries, toEntry(&r, 0, false))
		}
	}
	return res, nil
}

// QueryBySimilarity ranks matching records by cosine similarity.
// Ties keep insertion order.
func (s *Store) QueryBySimilarity(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if len(q.Vector) == 0 {
		return nil, fmt.Errorf("vector is required")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[q.Collection]
	if !ok {
		return nil, db.ErrCollectionNotFound
	}

	entries := make([]db.SearchEntry, 0, len(c.order))
	for _, id := range c.order {
		r := c.records[id]
		if !q.Filter.Match(r.Metadata) {
			continue
		}
		entries = append(entries, toEntry(&r, cosine(q.Vector, r.Vector), q.IncludeVector))
	}
	slices.SortStableFunc(entries, func(a, b db.SearchEntry) int {
		return cmp.Compare(b.Score, a.Score)
	})
	total := len(entries)
	if len(entries) > max(q.K, 0) {
		entries = entries[:max(q.K, 0)]
	}
	return &db.SearchResult{Total: total, Entries: entries}, nil
}

// Get retrieves a value by key.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.kv[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return slices.Clone(v), nil
}

// Set stores a value at the given key.
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kv[key] = slices.Clone(value)
	return nil
}

func toEntry(r *db.Record, score float64, withVector bool) db.SearchEntry {
	e := db.SearchEntry{
		ID:       r.ID,
		Score:    score,
		Text:     r.Text,
		Metadata: maps.Clone(r.Metadata),
	}
	if withVector {
		e.Vector = slices.Clone(r.Vector)
	}
	return e
}

// cosine returns the similarity mapped to [0,1]; mismatched or zero vectors score 0.
func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	return max(0, min(1, sim))
}

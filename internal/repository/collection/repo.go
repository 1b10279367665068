// Package collection provisions question collections in the document store.
package collection

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/pastq/internal/db"
	"github.com/kailas-cloud/pastq/internal/domain/question"
	"github.com/kailas-cloud/pastq/internal/repository/storeerr"
)

// store is the consumer interface for collections (ISP).
type store interface {
	EnsureCollection(ctx context.Context, def *db.CollectionDefinition) error
	HasCollection(ctx context.Context, name string) (bool, error)
	ListCollections(ctx context.Context) ([]string, error)
	DropCollection(ctx context.Context, name string) error
}

// HNSWConfig HNSW index parameters.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Repo implements usecase/ingest.CollectionRepository.
type Repo struct {
	store     store
	vectorDim int
	hnsw      HNSWConfig
}

// New creates a collection repository.
func New(s store, vectorDim int) *Repo {
	return &Repo{store: s, vectorDim: vectorDim, hnsw: HNSWConfig{M: 16, EFConstruct: 200}}
}

// WithHNSW configures HNSW index parameters.
func (r *Repo) WithHNSW(cfg HNSWConfig) *Repo {
	if cfg.M > 0 {
		r.hnsw.M = cfg.M
	}
	if cfg.EFConstruct > 0 {
		r.hnsw.EFConstruct = cfg.EFConstruct
	}
	return r
}

// Ensure creates the collection with every filterable schema field indexed.
// An existing collection is left untouched.
func (r *Repo) Ensure(ctx context.Context, name string) error {
	if err := r.store.EnsureCollection(ctx, r.definition(name)); err != nil {
		return fmt.Errorf("ensure collection %s: %w", name, storeerr.Map("store ensure", err))
	}
	return nil
}

// Exists reports whether the collection exists.
func (r *Repo) Exists(ctx context.Context, name string) (bool, error) {
	ok, err := r.store.HasCollection(ctx, name)
	if err != nil {
		return false, fmt.Errorf("check collection %s: %w", name, storeerr.Map("store check", err))
	}
	return ok, nil
}

// List returns the collection names.
func (r *Repo) List(ctx context.Context) ([]string, error) {
	names, err := r.store.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", storeerr.Map("store list", err))
	}
	return names, nil
}

// Drop removes the collection and its questions.
func (r *Repo) Drop(ctx context.Context, name string) error {
	if err := r.store.DropCollection(ctx, name); err != nil {
		return fmt.Errorf("drop collection %s: %w", name, storeerr.Map("store drop", err))
	}
	return nil
}

func (r *Repo) definition(name string) *db.CollectionDefinition {
	specs := question.MetadataFields()
	fields := make([]string, len(specs))
	for i, s := range specs {
		fields[i] = string(s.Name)
	}
	return &db.CollectionDefinition{
		Name:            name,
		Dimensions:      r.vectorDim,
		Fields:          fields,
		HNSWM:           r.hnsw.M,
		HNSWEFConstruct: r.hnsw.EFConstruct,
	}
}

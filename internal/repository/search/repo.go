// Package search reads questions from the document store.
package search

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/pastq/internal/db"
	"github.com/kailas-cloud/pastq/internal/domain/question"
	"github.com/kailas-cloud/pastq/internal/domain/search/filter"
	"github.com/kailas-cloud/pastq/internal/domain/search/result"
	"github.com/kailas-cloud/pastq/internal/repository/storeerr"
)

// store is the consumer interface for search operations (ISP).
type store interface {
	QueryByFilter(ctx context.Context, q *db.FilterQuery) (*db.SearchResult, error)
	QueryBySimilarity(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SupportsFilterQuery() bool
}

// Repo implements usecase/search.Repository.
type Repo struct {
	store store
}

// New creates a search repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// SupportsFilterQuery proxies the capability check from the store.
func (r *Repo) SupportsFilterQuery() bool {
	return r.store.SupportsFilterQuery()
}

// QueryByFilter returns up to limit questions matching expr, in store order.
func (r *Repo) QueryByFilter(
	ctx context.Context, collection string, expr filter.Expression, limit int,
) ([]result.Result, error) {
	sr, err := r.store.QueryByFilter(ctx, &db.FilterQuery{
		Collection: collection,
		Filter:     expr,
		Limit:      limit,
	})
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, storeerr.Map("store query", err))
	}
	return toResults(sr), nil
}

// QueryBySimilarity returns the k nearest questions to vector among those matching expr.
func (r *Repo) QueryBySimilarity(
	ctx context.Context, collection string, vector []float32, expr filter.Expression, k int,
) ([]result.Result, error) {
	sr, err := r.store.QueryBySimilarity(ctx, &db.KNNQuery{
		Collection: collection,
		Filter:     expr,
		Vector:     vector,
		K:          k,
	})
	if err != nil {
		return nil, fmt.Errorf("similarity search %s: %w", collection, storeerr.Map("store search", err))
	}
	return toResults(sr), nil
}

func toResults(sr *db.SearchResult) []result.Result {
	if sr == nil || len(sr.Entries) == 0 {
		return nil
	}
	out := make([]result.Result, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		doc := question.Document{ID: e.ID, Text: e.Text, Metadata: e.Metadata, Vector: e.Vector}
		out = append(out, result.FromDocument(&doc, e.Score))
	}
	return out
}

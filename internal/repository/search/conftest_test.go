package search

import (
	"context"
	"testing"

	"github.com/kailas-cloud/pastq/internal/db"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	queryByFilterFn     func(ctx context.Context, q *db.FilterQuery) (*db.SearchResult, error)
	queryBySimilarityFn func(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	supportsFilter      bool
}

func (m *mockStore) QueryByFilter(ctx context.Context, q *db.FilterQuery) (*db.SearchResult, error) {
	if m.queryByFilterFn != nil {
		return m.queryByFilterFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) QueryBySimilarity(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if m.queryBySimilarityFn != nil {
		return m.queryBySimilarityFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) SupportsFilterQuery() bool { return m.supportsFilter }

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms), ms
}

package search

import (
	"context"

	"github.com/kailas-cloud/pastq/internal/domain"
	"github.com/kailas-cloud/pastq/internal/domain/search/filter"
	"github.com/kailas-cloud/pastq/internal/domain/search/result"
	"github.com/kailas-cloud/pastq/internal/resilience"
)

// Repository defines the storage contract for retrieval.
type Repository interface {
	QueryByFilter(ctx context.Context, collection string, expr filter.Expression, limit int) ([]result.Result, error)
	QueryBySimilarity(
		ctx context.Context, collection string,
		vector []float32, expr filter.Expression, k int,
	) ([]result.Result, error)
	SupportsFilterQuery() bool
}

// Embedder vectorizes the semantic seed of a question.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Runner executes store calls under the retry and circuit breaker policy.
type Runner interface {
	Execute(ctx context.Context, operation string, fn func(context.Context) error, classifier resilience.ErrorClassifier) error
}

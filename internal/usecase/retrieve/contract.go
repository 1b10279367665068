package retrieve

import (
	"context"

	"github.com/kailas-cloud/pastq/internal/domain/question"
	"github.com/kailas-cloud/pastq/internal/domain/search/result"
	"github.com/kailas-cloud/pastq/internal/usecase/search"
)

// Extractor turns a natural-language question into a filter.
type Extractor interface {
	Extract(ctx context.Context, text string) (*question.Filter, error)
}

// Executor runs a compiled retrieval plan.
type Executor interface {
	Execute(ctx context.Context, plan *search.Plan) (*result.Envelope, error)
}

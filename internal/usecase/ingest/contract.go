package ingest

import (
	"context"

	"github.com/kailas-cloud/pastq/internal/domain"
	"github.com/kailas-cloud/pastq/internal/domain/question"
)

// CollectionManager creates, lists and drops question collections.
type CollectionManager interface {
	Ensure(ctx context.Context, name string) error
	Exists(ctx context.Context, name string) (bool, error)
	List(ctx context.Context) ([]string, error)
	Drop(ctx context.Context, name string) error
}

// DocumentWriter stores and removes embedded questions.
type DocumentWriter interface {
	Insert(ctx context.Context, collection string, docs []question.Document) error
	Delete(ctx context.Context, collection string, ids []string) error
}

// Embedder vectorizes question text on the document side.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

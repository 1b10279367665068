// Package document writes questions to the document store.
package document

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/pastq/internal/db"
	"github.com/kailas-cloud/pastq/internal/domain/question"
	"github.com/kailas-cloud/pastq/internal/repository/storeerr"
)

// store is the consumer interface for documents (ISP).
type store interface {
	Insert(ctx context.Context, collection string, records []db.Record) error
	Delete(ctx context.Context, collection string, ids []string) error
}

// Repo implements usecase/ingest.DocumentRepository.
type Repo struct {
	store store
}

// New creates a document repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// Insert stores embedded questions. Every document needs an ID and a vector.
func (r *Repo) Insert(ctx context.Context, collection string, docs []question.Document) error {
	records := make([]db.Record, len(docs))
	for i := range docs {
		d := &docs[i]
		if d.ID == "" || len(d.Vector) == 0 {
			return fmt.Errorf("document %d: id and vector are required", i)
		}
		records[i] = db.Record{ID: d.ID, Text: d.Text, Vector: d.Vector, Metadata: d.PublicMetadata()}
	}
	if err := r.store.Insert(ctx, collection, records); err != nil {
		return fmt.Errorf("insert into %s: %w", collection, storeerr.Map("store insert", err))
	}
	return nil
}

// Delete removes questions by ID.
func (r *Repo) Delete(ctx context.Context, collection string, ids []string) error {
	if err := r.store.Delete(ctx, collection, ids); err != nil {
		return fmt.Errorf("delete from %s: %w", collection, storeerr.Map("store delete", err))
	}
	return nil
}

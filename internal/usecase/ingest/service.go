// Package ingest loads question datasets into collections and manages them.
package ingest

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/pastq/internal/domain"
	"github.com/kailas-cloud/pastq/internal/domain/question"
	"github.com/kailas-cloud/pastq/internal/logger"
	"github.com/kailas-cloud/pastq/internal/metrics"
)

// Defaults for dataset loading.
const (
	DefaultBatchSize   = 64
	DefaultConcurrency = 4
)

// Report summarizes one dataset load.
type Report struct {
	Collection   string `json:"collection"`
	Inserted     int    `json:"inserted"`
	GeneratedIDs int    `json:"generated_ids"`
	TotalTokens  int    `json:"total_tokens"`
}

// Service loads, deletes and drops questions.
type Service struct {
	colls       CollectionManager
	docs        DocumentWriter
	embed       Embedder
	batchSize   int
	concurrency int
}

// New creates an ingest service.
func New(colls CollectionManager, docs DocumentWriter, embed Embedder) *Service {
	return &Service{
		colls:       colls,
		docs:        docs,
		embed:       embed,
		batchSize:   DefaultBatchSize,
		concurrency: DefaultConcurrency,
	}
}

// WithBatching overrides the embedding batch size and parallelism. Values <= 0 keep the defaults.
func (s *Service) WithBatching(size, concurrency int) *Service {
	if size > 0 {
		s.batchSize = size
	}
	if concurrency > 0 {
		s.concurrency = concurrency
	}
	return s
}

// Load parses a JSON array of question records, embeds every question and
// writes them to collection, creating it if needed. Records without an id
// get a random one. Records sharing an id replace each other in the store,
// so duplicates are rejected up front.
func (s *Service) Load(ctx context.Context, collection string, data []byte) (Report, error) {
	docs, err := question.ParseDataset(data)
	if err != nil {
		return Report{}, fmt.Errorf("%w: %w", domain.ErrInvalidArgument, err)
	}
	if len(docs) == 0 {
		return Report{}, domain.ErrEmptyDataset
	}

	report := Report{Collection: collection}
	seen := make(map[string]int, len(docs))
	for i := range docs {
		d := &docs[i]
		if d.ID == "" {
			d.ID = uuid.NewString()
			d.Metadata[string(question.FieldID)] = d.ID
			report.GeneratedIDs++
		}
		if prev, dup := seen[d.ID]; dup {
			return Report{}, fmt.Errorf("%w: records %d and %d share id %q",
				domain.ErrInvalidArgument, prev+1, i+1, d.ID)
		}
		seen[d.ID] = i
		d.Metadata[question.MetaCollection] = collection
	}

	tokens, err := s.vectorize(ctx, docs)
	if err != nil {
		return Report{}, err
	}
	report.TotalTokens = tokens

	if err := s.colls.Ensure(ctx, collection); err != nil {
		return Report{}, fmt.Errorf("ensure collection: %w", err)
	}
	for start := 0; start < len(docs); start += s.batchSize {
		end := min(start+s.batchSize, len(docs))
		if err := s.docs.Insert(ctx, collection, docs[start:end]); err != nil {
			return report, fmt.Errorf("insert records %d-%d: %w", start+1, end, err)
		}
		report.Inserted = end
	}

	metrics.IngestedDocumentsTotal.WithLabelValues(collection).Add(float64(report.Inserted))
	logger.FromContext(ctx).Info("Dataset loaded",
		zap.String("collection", collection),
		zap.Int("inserted", report.Inserted),
		zap.Int("generated_ids", report.GeneratedIDs),
		zap.Int("total_tokens", report.TotalTokens),
	)
	return report, nil
}

// vectorize embeds docs in batches, at most s.concurrency batches at a time.
func (s *Service) vectorize(ctx context.Context, docs []question.Document) (int, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	tokens := make([]int, (len(docs)+s.batchSize-1)/s.batchSize)
	for b, start := 0, 0; start < len(docs); b, start = b+1, start+s.batchSize {
		batch := docs[start:min(start+s.batchSize, len(docs))]
		g.Go(func() error {
			texts := make([]string, len(batch))
			for i := range batch {
				texts[i] = batch[i].Text
			}
			res, err := domain.EmbedAll(gctx, s.embed, texts)
			if err != nil {
				return fmt.Errorf("embed records %d-%d: %w", start+1, start+len(batch), err)
			}
			for i := range batch {
				batch[i].Vector = res.Embeddings[i]
			}
			tokens[b] = res.TotalTokens
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err //nolint:wrapcheck // already names the batch
	}

	total := 0
	for _, t := range tokens {
		total += t
	}
	return total, nil
}

// Delete removes questions by id from an existing collection.
func (s *Service) Delete(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return fmt.Errorf("%w: ids are required", domain.ErrInvalidArgument)
	}
	if err := s.requireCollection(ctx, collection); err != nil {
		return err
	}
	if err := s.docs.Delete(ctx, collection, ids); err != nil {
		return fmt.Errorf("delete questions: %w", err)
	}
	logger.FromContext(ctx).Info("Questions deleted",
		zap.String("collection", collection),
		zap.Int("count", len(ids)),
	)
	return nil
}

// Drop removes a collection and every question in it.
func (s *Service) Drop(ctx context.Context, collection string) error {
	if err := s.colls.Drop(ctx, collection); err != nil {
		return fmt.Errorf("drop: %w", err)
	}
	logger.FromContext(ctx).Info("Collection dropped", zap.String("collection", collection))
	return nil
}

// Collections lists collection names.
func (s *Service) Collections(ctx context.Context) ([]string, error) {
	names, err := s.colls.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

func (s *Service) requireCollection(ctx context.Context, collection string) error {
	ok, err := s.colls.Exists(ctx, collection)
	if err != nil {
		return fmt.Errorf("check collection: %w", err)
	}
	if !ok {
		return fmt.Errorf("%s: %w", collection, domain.ErrCollectionNotFound)
	}
	return nil
}

package chi

import (
	"context"

	"github.com/kailas-cloud/pastq/internal/domain/search/result"
	healthuc "github.com/kailas-cloud/pastq/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/pastq/internal/usecase/ingest"
)

// Retriever answers a question with past exam questions.
type Retriever interface {
	Retrieve(ctx context.Context, text string, k int) (*result.Envelope, error)
	NormalizeK(raw any) int
}

// Ingester manages the question bank.
type Ingester interface {
	Load(ctx context.Context, collection string, data []byte) (ingestuc.Report, error)
	Delete(ctx context.Context, collection string, ids []string) error
	Drop(ctx context.Context, collection string) error
	Collections(ctx context.Context) ([]string, error)
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// Package search executes a classified, compiled question against the question store.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/pastq/internal/domain"
	"github.com/kailas-cloud/pastq/internal/domain/question"
	"github.com/kailas-cloud/pastq/internal/domain/search/filter"
	"github.com/kailas-cloud/pastq/internal/domain/search/mode"
	"github.com/kailas-cloud/pastq/internal/domain/search/result"
	"github.com/kailas-cloud/pastq/internal/logger"
	"github.com/kailas-cloud/pastq/internal/resilience"
)

// DefaultOverFetch is how many candidates a similarity query fetches when
// the predicate is applied client-side.
const DefaultOverFetch = 100

// Options tunes the executor.
type Options struct {
	// OverFetch bounds similarity queries that feed a client-side post-filter.
	OverFetch int
	// PushDown sends the compiled predicate to the store along with the query.
	// The client-side post-filter runs either way.
	PushDown bool
	// StoreTimeout bounds each embedding and store call; 0 means no bound.
	StoreTimeout time.Duration
}

// DefaultOptions returns pushdown enabled with the default over-fetch.
func DefaultOptions() Options {
	return Options{OverFetch: DefaultOverFetch, PushDown: true}
}

// Plan is one classified and compiled retrieval.
type Plan struct {
	Collection string
	// Question is the raw user question.
	Question   string
	Filter     *question.Filter
	Mode       mode.Mode
	Expression filter.Expression
	K          int
}

// seed is the text embedded for similarity: question_text when the user
// described the content, the raw question otherwise.
func (p *Plan) seed() string {
	if p.Filter != nil && p.Filter.QuestionText != nil && strings.TrimSpace(*p.Filter.QuestionText) != "" {
		return *p.Filter.QuestionText
	}
	return p.Question
}

// Executor runs metadata-only and semantic retrievals.
type Executor struct {
	repo   Repository
	embed  Embedder
	runner Runner
	opts   Options
}

// New creates an executor. runner may be nil to call the store directly.
func New(repo Repository, embed Embedder, runner Runner, opts Options) *Executor {
	if opts.OverFetch <= 0 {
		opts.OverFetch = DefaultOverFetch
	}
	return &Executor{repo: repo, embed: embed, runner: runner, opts: opts}
}

// Execute runs the plan and returns at most plan.K results. Zero matches is
// an empty envelope, not an error. Failures are *domain.RetrievalError.
func (e *Executor) Execute(ctx context.Context, plan *Plan) (*result.Envelope, error) {
	if plan.K <= 0 {
		return &result.Envelope{Results: []result.Result{}}, nil
	}

	var (
		results []result.Result
		err     error
	)
	switch plan.Mode {
	case mode.MetadataOnly:
		results, err = e.metadataOnly(ctx, plan)
	case mode.Semantic:
		results, err = e.semantic(ctx, plan)
	default:
		return nil, domain.NewRetrievalError(domain.StageStore,
			fmt.Errorf("%w: unsupported mode %q", domain.ErrInvalidArgument, plan.Mode))
	}
	if err != nil {
		return nil, err
	}

	env := &result.Envelope{Results: normalize(results)}
	env.Truncate(plan.K)

	logger.FromContext(ctx).Debug("Retrieval executed",
		zap.String("collection", plan.Collection),
		zap.String("mode", string(plan.Mode)),
		zap.String("filter", plan.Expression.String()),
		zap.Int("candidates", len(results)),
		zap.Int("returned", len(env.Results)),
	)
	return env, nil
}

// metadataOnly filters exactly in store order. Stores without a bare filter
// query fall back to an over-fetched similarity query on the raw question.
func (e *Executor) metadataOnly(ctx context.Context, plan *Plan) ([]result.Result, error) {
	if e.repo.SupportsFilterQuery() {
		var out []result.Result
		err := e.store(ctx, "store.query_by_filter", func(ctx context.Context) error {
			var err error
			out, err = e.repo.QueryByFilter(ctx, plan.Collection, plan.Expression, plan.K)
			return err //nolint:wrapcheck // wrapped by store
		})
		if err != nil {
			return nil, err
		}
		return postFilter(plan.Expression, out), nil
	}

	vec, err := e.vectorize(ctx, plan.Question)
	if err != nil {
		return nil, err
	}
	return e.similar(ctx, plan, vec, e.opts.OverFetch)
}

// semantic ranks by similarity to the seed and post-filters without re-querying.
func (e *Executor) semantic(ctx context.Context, plan *Plan) ([]result.Result, error) {
	vec, err := e.vectorize(ctx, plan.seed())
	if err != nil {
		return nil, err
	}
	k := plan.K
	if !e.opts.PushDown && !plan.Expression.IsEmpty() {
		k = max(k, e.opts.OverFetch)
	}
	return e.similar(ctx, plan, vec, k)
}

func (e *Executor) similar(ctx context.Context, plan *Plan, vec []float32, k int) ([]result.Result, error) {
	pushed := filter.Expression{}
	if e.opts.PushDown {
		pushed = plan.Expression
	}
	var out []result.Result
	err := e.store(ctx, "store.query_by_similarity", func(ctx context.Context) error {
		var err error
		out, err = e.repo.QueryBySimilarity(ctx, plan.Collection, vec, pushed, k)
		return err //nolint:wrapcheck // wrapped by store
	})
	if err != nil {
		return nil, err
	}
	return postFilter(plan.Expression, out), nil
}

func (e *Executor) vectorize(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := e.bound(ctx)
	defer cancel()

	res, err := e.embed.Embed(ctx, text)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = &domain.TimeoutError{Op: domain.StageEmbed, Err: err}
		}
		return nil, domain.NewRetrievalError(domain.StageEmbed, fmt.Errorf("vectorize question: %w", err))
	}
	return res.Embedding, nil
}

// store runs fn under the resilience policy with a per-attempt timeout.
func (e *Executor) store(ctx context.Context, op string, fn func(context.Context) error) error {
	attempt := func(ctx context.Context) error {
		ctx, cancel := e.bound(ctx)
		defer cancel()
		return fn(ctx)
	}

	var err error
	if e.runner == nil {
		err = attempt(ctx)
	} else {
		err = e.runner.Execute(ctx, op, attempt, resilience.StoreClassifier)
	}
	if err == nil {
		return nil
	}
	if resilience.IsCircuitOpen(err) {
		err = fmt.Errorf("%w: %w", domain.ErrStoreConnection, err)
	}
	return domain.NewRetrievalError(domain.StageStore, err)
}

func (e *Executor) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.opts.StoreTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, e.opts.StoreTimeout)
}

func postFilter(expr filter.Expression, results []result.Result) []result.Result {
	return filter.Filter(expr, results, func(r result.Result) map[string]any { return r.Metadata })
}

// normalize strips embedding fields and guarantees a non-nil slice.
func normalize(results []result.Result) []result.Result {
	out := make([]result.Result, len(results))
	for i, r := range results {
		r.Metadata = question.StripVector(r.Metadata)
		out[i] = r
	}
	return out
}

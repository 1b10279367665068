// Package retrieve is the single entry point that answers a question with past exam questions.
package retrieve

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/pastq/internal/domain"
	"github.com/kailas-cloud/pastq/internal/domain/question"
	"github.com/kailas-cloud/pastq/internal/domain/search/filter"
	"github.com/kailas-cloud/pastq/internal/domain/search/mode"
	"github.com/kailas-cloud/pastq/internal/domain/search/result"
	"github.com/kailas-cloud/pastq/internal/logger"
	"github.com/kailas-cloud/pastq/internal/metrics"
	"github.com/kailas-cloud/pastq/internal/usecase/search"
)

// Result count bounds.
const (
	DefaultK = 3
	MaxK     = 20
)

// Options configures the retrieval service.
type Options struct {
	Collection string
	DefaultK   int
	MaxK       int
	// Threshold is the classifier's field-count rule; <= 0 selects the default.
	Threshold int
	// SubjectScoped drops the subject clause because the collection holds one subject.
	SubjectScoped     bool
	ExtractionTimeout time.Duration
	IncludeFilterInfo bool
}

// Service answers questions: extract, classify, compile, execute.
type Service struct {
	extractor  Extractor
	executor   Executor
	classifier question.Classifier
	opts       Options
}

// New creates a retrieval service.
func New(extractor Extractor, executor Executor, opts Options) *Service {
	if opts.DefaultK <= 0 {
		opts.DefaultK = DefaultK
	}
	if opts.MaxK <= 0 {
		opts.MaxK = MaxK
	}
	opts.DefaultK = min(opts.DefaultK, opts.MaxK)
	return &Service{
		extractor:  extractor,
		executor:   executor,
		classifier: question.NewClassifier(opts.Threshold),
		opts:       opts,
	}
}

// DefaultK returns the result count used when the caller gives none.
func (s *Service) DefaultK() int { return s.opts.DefaultK }

// NormalizeK coerces a caller-supplied k (number, numeric string or nil) to
// a result count, falling back to s.DefaultK on anything unusable.
func (s *Service) NormalizeK(raw any) int {
	return NormalizeK(raw, s.opts.DefaultK, s.opts.MaxK)
}

// Retrieve answers text with at most k questions. k <= 0 means k was not
// given and selects the default; k above the maximum is capped. Failures are *domain.RetrievalError.
func (s *Service) Retrieve(ctx context.Context, text string, k int) (*result.Envelope, error) {
	start := time.Now()
	log := logger.FromContext(ctx)

	text = strings.TrimSpace(text)
	if text == "" {
		err := domain.NewRetrievalError(domain.StageExtract,
			fmt.Errorf("%w: question is required", domain.ErrInvalidArgument))
		s.record("unknown", err, start, 0)
		return nil, err
	}
	k = s.clampK(k)

	f, err := s.extract(ctx, text)
	if err != nil {
		err = domain.NewRetrievalError(domain.StageExtract, err)
		log.Warn("Question extraction failed", zap.Error(err))
		s.record("unknown", err, start, 0)
		return nil, err
	}

	m := s.classify(ctx, f)
	expr := filter.Compile(f, filter.CompileOptions{SubjectScoped: s.opts.SubjectScoped})

	env, err := s.executor.Execute(ctx, &search.Plan{
		Collection: s.opts.Collection,
		Question:   text,
		Filter:     f,
		Mode:       m,
		Expression: expr,
		K:          k,
	})
	if err != nil {
		log.Warn("Retrieval failed",
			zap.String("mode", string(m)),
			zap.String("filter", expr.String()),
			zap.Error(err),
		)
		s.record(string(m), err, start, 0)
		return nil, domain.NewRetrievalError(domain.StageStore, err)
	}

	if s.opts.IncludeFilterInfo {
		env.FilterInfo = &result.FilterInfo{
			FilterExpression: expr.String(),
			MetadataOnly:     m == mode.MetadataOnly,
		}
	}

	log.Info("Retrieval completed",
		zap.String("mode", string(m)),
		zap.String("filter", expr.String()),
		zap.Int("k", k),
		zap.Int("results", len(env.Results)),
		zap.Duration("duration", time.Since(start)),
	)
	s.record(string(m), nil, start, len(env.Results))
	return env, nil
}

func (s *Service) extract(ctx context.Context, text string) (*question.Filter, error) {
	if s.opts.ExtractionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.ExtractionTimeout)
		defer cancel()
	}
	f, err := s.extractor.Extract(ctx, text)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && !domain.IsTimeout(err) {
			err = &domain.TimeoutError{Op: domain.StageExtract, Err: err}
		}
		return nil, err //nolint:wrapcheck // wrapped by Retrieve
	}
	if f == nil {
		return nil, domain.NewExtractionError("no filter returned", nil)
	}
	return f, nil
}

// classify applies the field-count rule. The extractor's own metadata_only
// flag is only compared and logged.
func (s *Service) classify(ctx context.Context, f *question.Filter) mode.Mode {
	m := s.classifier.Classify(f)
	if f.MetadataOnly != (m == mode.MetadataOnly) {
		metrics.ClassifierDisagreementsTotal.Inc()
		logger.FromContext(ctx).Debug("Extractor metadata_only disagrees with classifier",
			zap.Bool("extractor", f.MetadataOnly),
			zap.String("classifier", string(m)),
			zap.Int("set_fields", len(f.SetFields())),
			zap.Int("threshold", s.classifier.Threshold()),
		)
	}
	return m
}

func (s *Service) clampK(k int) int {
	if k <= 0 {
		return s.opts.DefaultK
	}
	return min(k, s.opts.MaxK)
}

func (s *Service) record(m string, err error, start time.Time, n int) {
	metrics.RetrievalRequestsTotal.WithLabelValues(m, status(err)).Inc()
	metrics.RetrievalDuration.WithLabelValues(m).Observe(time.Since(start).Seconds())
	if err == nil {
		metrics.RetrievalResults.WithLabelValues(m).Observe(float64(n))
	}
}

func status(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrInvalidArgument):
		return "invalid"
	case domain.IsTimeout(err):
		return "timeout"
	case errors.Is(err, domain.ErrExtraction):
		return "extraction_error"
	case errors.Is(err, domain.ErrCollectionNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrStoreConnection):
		return "unavailable"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}

// NormalizeK coerces raw to a result count in [1, maxK]. Missing, malformed,
// fractional or non-positive values fall back to def.
func NormalizeK(raw any, def, maxK int) int {
	n, ok := toInt(raw)
	if !ok || n <= 0 {
		return def
	}
	if maxK > 0 && n > maxK {
		return maxK
	}
	return n
}

func toInt(raw any) (int, bool) {
	switch v := raw.(type) {
	case int:
		return v, true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case float64:
		return floatToInt(v)
	case float32:
		return floatToInt(float64(v))
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n), true
		}
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return floatToInt(f)
	case string:
		s := strings.TrimSpace(v)
		if n, err := strconv.Atoi(s); err == nil {
			return n, true
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return floatToInt(f)
	default:
		return 0, false
	}
}

func floatToInt(f float64) (int, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

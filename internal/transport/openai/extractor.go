package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/pastq/internal/domain"
	"github.com/kailas-cloud/pastq/internal/domain/question"
	"github.com/kailas-cloud/pastq/internal/metrics"
)

// ExtractorConfig holds the chat model settings for query extraction.
type ExtractorConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	// MinYearBS and MinYearAD drop earlier years from the extracted filter.
	MinYearBS int
	MinYearAD int
	// Threshold is the classifier's field-count rule, repeated in the prompt.
	Threshold int
	// RateLimit is requests per second; 0 disables limiting.
	RateLimit float64
	Burst     int
	Logger    *zap.Logger
}

// Extractor turns a natural-language question into a question.Filter with a
// JSON-schema constrained chat completion.
type Extractor struct {
	client      *openai.Client
	model       string
	temperature float32
	minYearBS   int
	minYearAD   int
	prompt      string
	schema      jsonschema.Definition
	limiter     *rate.Limiter
	logger      *zap.Logger
}

// NewExtractor creates an OpenAI-compatible query extractor.
func NewExtractor(cfg *ExtractorConfig) *Extractor {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	minBS := cfg.MinYearBS
	if minBS <= 0 {
		minBS = question.MinYearBS
	}
	minAD := cfg.MinYearAD
	if minAD <= 0 {
		minAD = question.MinYearAD
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), max(cfg.Burst, 1))
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Extractor{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		minYearBS:   minBS,
		minYearAD:   minAD,
		prompt:      systemPrompt(minBS, question.NewClassifier(cfg.Threshold).Threshold()),
		schema:      filterSchema(),
		limiter:     limiter,
		logger:      logger,
	}
}

// Extract implements the query extraction step. Failures are
// *domain.ExtractionError, *domain.TimeoutError or the context's cancellation.
func (x *Extractor) Extract(ctx context.Context, text string) (*question.Filter, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, domain.NewExtractionError("empty question", nil)
	}

	if x.limiter != nil {
		if err := x.limiter.Wait(ctx); err != nil {
			x.record("rate_limited", 0)
			return nil, x.contextFailure(ctx, fmt.Errorf("rate limiter: %w: %w", domain.ErrRateLimited, err))
		}
	}

	req := openai.ChatCompletionRequest{
		Model:       x.model,
		Temperature: x.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: x.prompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "question_search",
				Schema: &x.schema,
			},
		},
	}

	start := time.Now()
	resp, err := x.client.CreateChatCompletion(ctx, req)
	latency := time.Since(start)

	if err != nil {
		x.record("error", latency)
		if ctx.Err() != nil {
			return nil, x.contextFailure(ctx, err)
		}
		x.logger.Warn("Extraction request failed",
			zap.String("model", x.model),
			zap.Duration("latency", latency),
			zap.Error(err),
		)
		return nil, domain.NewExtractionError("provider error", parseAPIError("chat", err, domain.ErrExtraction))
	}

	if len(resp.Choices) == 0 {
		x.record("invalid", latency)
		return nil, domain.NewExtractionError("empty response", nil)
	}

	content := resp.Choices[0].Message.Content
	filter, err := decodeFilter(content)
	if err != nil {
		x.record("invalid", latency)
		x.logger.Warn("Extraction output rejected",
			zap.String("model", x.model),
			zap.String("content", content),
			zap.Error(err),
		)
		return nil, domain.NewExtractionError("output does not match the question schema", err)
	}
	filter.ClampYears(x.minYearBS, x.minYearAD)

	x.record("success", latency)
	x.logger.Debug("Extraction completed",
		zap.String("model", x.model),
		zap.Duration("latency", latency),
		zap.Strings("fields", fieldNames(filter)),
		zap.Bool("metadata_only", filter.MetadataOnly),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
	)
	return filter, nil
}

// HealthCheck verifies API availability via ListModels.
func (x *Extractor) HealthCheck(ctx context.Context) error {
	if _, err := x.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// contextFailure maps a failure caused by the request context or the rate
// limiter. Cancellation passes through; everything else is a timeout.
func (x *Extractor) contextFailure(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return fmt.Errorf("extract: %w", ctx.Err())
	}
	return &domain.TimeoutError{Op: domain.StageExtract, Err: err}
}

func (x *Extractor) record(status string, latency time.Duration) {
	metrics.ExtractionRequestsTotal.WithLabelValues(x.model, status).Inc()
	if latency > 0 {
		metrics.ExtractionDuration.WithLabelValues(x.model).Observe(latency.Seconds())
	}
}

func fieldNames(f *question.Filter) []string {
	set := f.SetFields()
	out := make([]string, len(set))
	for i, name := range set {
		out[i] = string(name)
	}
	return out
}

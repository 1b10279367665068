package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/pastq/internal/config"
	"github.com/kailas-cloud/pastq/internal/db"
	dbMemory "github.com/kailas-cloud/pastq/internal/db/memory"
	dbMilvus "github.com/kailas-cloud/pastq/internal/db/milvus"
	dbRedis "github.com/kailas-cloud/pastq/internal/db/redis"
	"github.com/kailas-cloud/pastq/internal/domain"
	"github.com/kailas-cloud/pastq/internal/metrics"
	collectionrepo "github.com/kailas-cloud/pastq/internal/repository/collection"
	documentrepo "github.com/kailas-cloud/pastq/internal/repository/document"
	"github.com/kailas-cloud/pastq/internal/repository/embcache"
	searchrepo "github.com/kailas-cloud/pastq/internal/repository/search"
	"github.com/kailas-cloud/pastq/internal/resilience"
	openaiTransport "github.com/kailas-cloud/pastq/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/pastq/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/pastq/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/pastq/internal/usecase/ingest"
	retrieveuc "github.com/kailas-cloud/pastq/internal/usecase/retrieve"
	searchuc "github.com/kailas-cloud/pastq/internal/usecase/search"
)

// app is the composition root shared by every command.
type app struct {
	cfg      config.Config
	logger   *zap.Logger
	store    db.Store
	retrieve *retrieveuc.Service
	ingest   *ingestuc.Service
	health   *healthuc.Service
}

func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterRetrievalMetrics()

	store, err := newStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	if err := store.WaitForReady(ctx, time.Duration(cfg.Store.ReadinessTimeout)*time.Second); err != nil {
		store.Close()
		return nil, fmt.Errorf("store not ready: %w", err)
	}
	logger.Info("Connected to question store",
		zap.String("driver", cfg.Store.Driver),
		zap.String("collection", cfg.Store.Collection),
	)

	docEmbedder := buildEmbedder(cfg.Embedding, cfg.Embedding.DocumentInstruction, store, logger)
	queryEmbedder := buildEmbedder(cfg.Embedding, cfg.Embedding.QueryInstruction, store, logger)
	logger.Info("Embedders created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
		zap.Bool("cache", cfg.Embedding.Cache),
	)

	extractor := openaiTransport.NewExtractor(&openaiTransport.ExtractorConfig{
		APIKey:      cfg.Extraction.APIKey,
		BaseURL:     cfg.Extraction.BaseURL,
		Model:       cfg.Extraction.Model,
		Temperature: cfg.Extraction.Temperature,
		MinYearBS:   cfg.Extraction.MinYearBS,
		MinYearAD:   cfg.Extraction.MinYearAD,
		Threshold:   cfg.Retrieval.Threshold,
		RateLimit:   cfg.Extraction.RateLimit,
		Burst:       cfg.Extraction.Burst,
		Logger:      logger,
	})

	runner := resilience.NewExecutor(resilienceConfig(cfg.Resilience), logger).
		WithStateHook(func(operation, state string) {
			metrics.CircuitBreakerTransitionsTotal.WithLabelValues(operation, state).Inc()
		})

	executor := searchuc.New(searchrepo.New(store), queryEmbedder, runner, searchuc.Options{
		OverFetch:    cfg.Retrieval.OverFetch,
		PushDown:     cfg.Retrieval.PushDownEnabled(),
		StoreTimeout: cfg.Retrieval.StoreTimeout(),
	})

	retrieveSvc := retrieveuc.New(extractor, executor, retrieveuc.Options{
		Collection:        cfg.Store.Collection,
		DefaultK:          cfg.Retrieval.DefaultK,
		MaxK:              cfg.Retrieval.MaxK,
		Threshold:         cfg.Retrieval.Threshold,
		SubjectScoped:     cfg.Retrieval.SubjectScoped,
		ExtractionTimeout: cfg.Extraction.Timeout(),
		IncludeFilterInfo: cfg.Retrieval.IncludeFilterInfo,
	})

	collRepo := collectionrepo.New(store, cfg.Embedding.Dimensions).WithHNSW(collectionrepo.HNSWConfig{
		M:           cfg.Store.HNSWM,
		EFConstruct: cfg.Store.HNSWEFConstruct,
	})
	ingestSvc := ingestuc.New(collRepo, documentrepo.New(store), docEmbedder).
		WithBatching(cfg.Ingest.BatchSize, cfg.Ingest.Concurrency)

	healthSvc := healthuc.New(store, newProviderChecker(docEmbedder), extractor)

	return &app{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		retrieve: retrieveSvc,
		ingest:   ingestSvc,
		health:   healthSvc,
	}, nil
}

// Close releases the store connection and flushes the logger.
func (a *app) Close() {
	a.store.Close()
	_ = a.logger.Sync()
}

func newStore(ctx context.Context, cfg config.StoreConfig) (db.Store, error) {
	var (
		store db.Store
		err   error
	)
	switch cfg.Driver {
	case config.DriverRedis, config.DriverValkey:
		store, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:     cfg.Addrs,
			Password:  cfg.Password,
			Dialect:   dbRedis.Dialect(cfg.Driver),
			KeyPrefix: cfg.KeyPrefix,
		})
	case config.DriverMilvus:
		store, err = dbMilvus.NewStore(ctx, dbMilvus.Config{
			Address:  cfg.MilvusAddress,
			Username: cfg.MilvusUsername,
			Password: cfg.MilvusPassword,
			DBName:   cfg.MilvusDatabase,
		})
	case config.DriverMemory:
		store = dbMemory.NewStore()
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s store: %w", cfg.Driver, err)
	}
	return store, nil
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instrumented -> Instruction
func buildEmbedder(cfg config.EmbeddingConfig, instruction string, store db.Store, logger *zap.Logger) domain.Embedder {
	// Base provider (with transport metrics built-in)
	base := openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		Model:      cfg.Model,
		Dimensions: cfg.Dimensions,
		Provider:   cfg.Provider,
		Logger:     logger,
	})

	var embedder domain.Embedder = base
	if kv, ok := store.(db.KVStore); ok && cfg.Cache {
		embedder = embcache.New(base, kv, cfg.Model, metrics.EmbeddingCacheTotal, logger)
	}

	// Instrumented (metrics + per-request token usage)
	embedder = embeddinguc.NewInstrumentedEmbedder(embedder, cfg.Provider, cfg.Model, logger).
		WithBatchSize(cfg.MaxBatchSize)

	// Instruction prefix (outermost, so the cache key includes it)
	if instruction != "" {
		return domain.NewInstructionEmbedder(embedder, instruction)
	}
	return embedder
}

func resilienceConfig(c config.ResilienceConfig) resilience.Config {
	out := resilience.DefaultConfig()
	if c.RetryMaxAttempts > 0 {
		out.RetryMaxAttempts = c.RetryMaxAttempts
	}
	if c.RetryInitialBackoffMs > 0 {
		out.RetryInitialBackoff = time.Duration(c.RetryInitialBackoffMs) * time.Millisecond
	}
	if c.RetryMaxBackoffMs > 0 {
		out.RetryMaxBackoff = time.Duration(c.RetryMaxBackoffMs) * time.Millisecond
	}
	if c.BreakerMinRequests > 0 {
		out.BreakerMinRequests = c.BreakerMinRequests
	}
	if c.BreakerFailureRatio > 0 {
		out.BreakerFailureRatio = c.BreakerFailureRatio
	}
	if c.BreakerOpenTimeoutSec > 0 {
		out.BreakerOpenTimeout = time.Duration(c.BreakerOpenTimeoutSec) * time.Second
	}
	out.BreakerEnabled = !c.BreakerDisabled
	return out
}

// providerChecker wraps domain.Embedder to implement health.ProviderChecker.
type providerChecker struct {
	embedder domain.Embedder
}

func newProviderChecker(embedder domain.Embedder) *providerChecker {
	return &providerChecker{embedder: embedder}
}

func (h *providerChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.embedder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
}

package main

import (
	"context"
	"fmt"
	"io"

	"github.com/go-redis/redis/v8"
	"golang.org/x/time/rate"

	"advisor-gpt-go/internal/config"
	"advisor-gpt-go/internal/handler"
	"advisor-gpt-go/internal/model"
	"advisor-gpt-go/internal/pipeline"
	"advisor-gpt-go/internal/repository"
	"advisor-gpt-go/internal/service"
	"advisor-gpt-go/pkg/database"
	"advisor-gpt-go/pkg/embedding"
	"advisor-gpt-go/pkg/kafka"
	"advisor-gpt-go/pkg/llm"
	"advisor-gpt-go/pkg/log"
	"advisor-gpt-go/pkg/retry"
	"advisor-gpt-go/pkg/storage"
	"advisor-gpt-go/pkg/vector"
)

// app holds the wired process and whatever must be closed on exit.
type app struct {
	handlers  handler.Handlers
	documents service.DocumentService
	consumer  *kafka.Consumer
	closers   []io.Closer
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			log.Warnf("close: %v", err)
		}
	}
}

func limiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

func buildApp(ctx context.Context, cfg config.Config) (*app, error) {
	a := &app{}

	// Optional stores.
	var rdb *redis.Client
	if cfg.Database.Redis.Addr != "" {
		var err error
		if rdb, err = database.InitRedis(ctx, cfg.Database.Redis); err != nil {
			return nil, err
		}
		a.closers = append(a.closers, rdb)
	}

	var catalog repository.ChunkRepository = repository.NewMemoryChunkRepository()
	if cfg.Database.MySQL.DSN != "" {
		db, err := database.InitMySQL(cfg.Database.MySQL.DSN, &model.ChunkRecord{})
		if err != nil {
			return nil, err
		}
		closer, err := database.Closer(db)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, closer)
		catalog = repository.NewChunkRepository(db)
	}

	var store storage.Store
	if cfg.MinIO.Enabled {
		s, err := storage.NewMinIOStore(ctx, cfg.MinIO)
		if err != nil {
			return nil, err
		}
		store = s
	} else {
		s, err := storage.NewLocalStore(cfg.Ingest.StoragePath)
		if err != nil {
			return nil, err
		}
		store = s
	}

	audit, err := repository.NewAuditLog(cfg.Audit.ResponseLogPath, cfg.Audit.FeedbackLogPath)
	if err != nil {
		return nil, err
	}

	// Vector index and model clients.
	index, err := vector.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init vector index: %w", err)
	}
	if c, ok := index.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}

	embedder, err := embedding.NewClient(ctx, cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("init embedding client: %w", err)
	}
	queryEmbedder := embedder
	if rdb != nil && cfg.Embedding.CacheTTL > 0 {
		queryEmbedder = embedding.NewCachedClient(embedder, embedding.NewRedisStore(rdb), cfg.Embedding.Model, cfg.Embedding.CacheTTL)
	}

	chat, err := llm.NewClient(ctx, cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("init llm client: %w", err)
	}

	embedPolicy := retry.Policy{
		Attempts: cfg.RAG.MaxAttempts,
		Timeout:  cfg.RAG.CallTimeout,
		Backoff:  cfg.RAG.Backoff,
		Limiter:  limiter(cfg.Embedding.RateLimit),
	}
	llmPolicy := embedPolicy
	llmPolicy.Limiter = limiter(cfg.LLM.RateLimit)

	// Ingestion.
	chunker, err := pipeline.NewChunker(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	indexer := pipeline.NewIndexer(chunker, embedder, index,
		pipeline.WithCatalog(catalog),
		pipeline.WithBatchSize(cfg.Embedding.BatchSize),
		pipeline.WithRetryPolicy(embedPolicy),
		pipeline.WithModelVersion(cfg.Embedding.Model),
	)
	processor := pipeline.NewProcessor(store, indexer)

	var producer service.TaskProducer
	if cfg.Kafka.Enabled {
		p := kafka.NewProducer(cfg.Kafka)
		a.closers = append(a.closers, p)
		producer = p

		var counter kafka.AttemptCounter = kafka.NewMemoryCounter()
		if rdb != nil {
			counter = kafka.NewRedisCounter(rdb)
		}
		a.consumer = kafka.NewConsumer(processor, counter)
	}
	a.documents = service.NewDocumentService(store, producer, processor, catalog, index)

	// Query path.
	retriever := service.NewRetriever(queryEmbedder, index, cfg.RAG.TopK, cfg.RAG.MinScore, embedPolicy)
	gate := service.NewEvidenceGate(cfg.RAG.TopK, cfg.RAG.MinScore)
	prompt := service.NewPromptBuilder(cfg.LLM.Prompt.Rules, cfg.LLM.Prompt.RefStart, cfg.LLM.Prompt.RefEnd)
	generator := service.NewAnswerGenerator(chat, prompt, llm.ParamsFromConfig(cfg.LLM.Generation), llmPolicy)
	queries := service.NewQueryService(retriever, gate, generator, audit, cfg.LLM.Model, cfg.LLM.Prompt.Version)

	a.handlers = handler.Handlers{
		Query:    handler.NewQueryHandler(queries),
		Feedback: handler.NewFeedbackHandler(service.NewFeedbackService(audit), service.NewPerformanceService(audit, cfg.RAG.RecentFeedbackLimit)),
		Document: handler.NewDocumentHandler(a.documents),
	}

	log.Infow("application wired",
		"vector_backend", cfg.Vector.Backend,
		"embedding_provider", cfg.Embedding.Provider,
		"llm_provider", cfg.LLM.Provider,
		"kafka", cfg.Kafka.Enabled,
		"minio", cfg.MinIO.Enabled,
		"mysql", cfg.Database.MySQL.DSN != "",
		"redis", rdb != nil,
	)
	return a, nil
}

package bootstrap

import (
	"context"
	"log"
	"time"

	"ai-docquery-be/internal/config"
	"ai-docquery-be/internal/controller"
	"ai-docquery-be/internal/pkg/logger"
	"ai-docquery-be/internal/querycache"
	"ai-docquery-be/internal/repository/implementation"
	"ai-docquery-be/internal/service"
	"ai-docquery-be/internal/vectorstore"
	"ai-docquery-be/pkg/embedding"
	"ai-docquery-be/pkg/events"
	"ai-docquery-be/pkg/llm/factory"
	"ai-docquery-be/pkg/rag"

	pktNats "ai-docquery-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	QueryController    controller.IQueryController
	DocumentController controller.IDocumentController

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 3. Providers
	var embeddingProvider embedding.Provider
	if cfg.Ai.EmbeddingProvider == "ollama" {
		embeddingProvider = embedding.NewOllamaProvider(
			cfg.Ai.OllamaBaseURL,
			cfg.Ai.EmbeddingModel,
		)
		log.Printf("[INFO] Using Embedding Provider: OLLAMA (%s)", cfg.Ai.EmbeddingModel)
	} else {
		embeddingProvider = embedding.NewOpenAIProvider(
			cfg.Ai.OpenAIApiKey,
			cfg.Ai.EmbeddingModel,
		)
		log.Printf("[INFO] Using Embedding Provider: OPENAI (%s)", cfg.Ai.EmbeddingModel)
	}

	llmProvider, err := factory.NewLLMProvider(
		cfg.Ai.LLMProvider,
		cfg.Ai.LLMModel,
		cfg.Ai.OllamaBaseURL,
		cfg.Ai.OpenAIApiKey,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	// 4. Vector Store
	store, err := vectorstore.New(vectorstore.Config{
		Kind: cfg.VectorDB.Kind,
		Pinecone: vectorstore.PineconeConfig{
			ApiKey:    cfg.VectorDB.PineconeApiKey,
			IndexName: cfg.VectorDB.PineconeIndex,
			IndexHost: cfg.VectorDB.PineconeIndexHost,
		},
		PgVector: vectorstore.PgVectorConfig{
			DSN:        cfg.Database.Connection,
			Table:      cfg.VectorDB.PgVectorTable,
			Dimensions: cfg.VectorDB.Dimensions,
		},
	})
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize vector store: %v", err)
	}
	log.Printf("[INFO] Using Vector Store: %s", cfg.VectorDB.Kind)

	// 5. Query Cache (Redis when configured and reachable, in-process otherwise)
	cacheTTL := time.Duration(cfg.Cache.TTLSeconds) * time.Second
	var queryCache querycache.Cache = querycache.NewMemoryCache(cacheTTL)
	if cfg.App.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.App.RedisURL)
		if err != nil {
			log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
			opt = &redis.Options{Addr: cfg.App.RedisURL}
		}
		rdb := redis.NewClient(opt)
		if _, err := rdb.Ping(context.Background()).Result(); err != nil {
			log.Printf("[WARN] Failed to connect to Redis: %v. Falling back to in-memory cache", err)
		} else {
			queryCache = querycache.NewRedisCache(rdb, sysLogger)
			log.Printf("[INFO] Using Redis query cache")
		}
	}

	// 6. NATS
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	}
	natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", err)
	}

	// Audit trail for document lifecycle events.
	if natsSub != nil {
		err := natsSub.Subscribe("events.*", "docquery-audit", func(ctx context.Context, evt events.Event) error {
			sysLogger.Info("audit", "document event", map[string]interface{}{
				"type":    evt.EventType(),
				"payload": evt.Payload(),
			})
			return nil
		})
		if err != nil {
			log.Printf("[WARN] Failed to subscribe to document events: %v", err)
		}
	}

	// 7. Pipeline
	pipeline := rag.NewPipeline(
		store,
		embeddingProvider,
		llmProvider,
		queryCache,
		sysLogger,
		rag.Options{
			TopK:                cfg.Rag.TopK,
			SimilarityThreshold: cfg.Rag.SimilarityThreshold,
			CacheEnabled:        cfg.Cache.Enabled,
			CacheTTL:            cacheTTL,
			EmbeddingRatePer1M:  cfg.Pricing.EmbeddingRatePer1M,
			LLMRatePer1M:        cfg.Pricing.LLMRatePer1M,
		},
	)

	// 8. Services
	docRepo := implementation.NewDocumentRepository(db)
	publisherService := service.NewPublisherService(cfg.App.EmbedChunksTopic, pubSub)
	consumerService := service.NewConsumerService(
		pubSub,
		cfg.App.EmbedChunksTopic,
		docRepo,
		store,
		embeddingProvider,
		natsPub,
		sysLogger,
	)
	documentService := service.NewDocumentService(
		docRepo,
		store,
		publisherService,
		natsPub,
		sysLogger,
		cfg.Rag.ChunkSize,
		cfg.Rag.ChunkOverlap,
	)
	queryService := service.NewQueryService(pipeline)

	// 9. Controllers
	return &Container{
		QueryController:    controller.NewQueryController(queryService),
		DocumentController: controller.NewDocumentController(documentService),

		ConsumerService: consumerService,
	}
}

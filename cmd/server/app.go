package main

import (
	"context"
	"fmt"

	"cv-chat-go/internal/config"
	"cv-chat-go/internal/model"
	"cv-chat-go/internal/pipeline"
	"cv-chat-go/internal/repository"
	"cv-chat-go/internal/service"
	"cv-chat-go/pkg/database"
	"cv-chat-go/pkg/embedding"
	"cv-chat-go/pkg/es"
	"cv-chat-go/pkg/extract"
	"cv-chat-go/pkg/kafka"
	"cv-chat-go/pkg/llm"
	"cv-chat-go/pkg/log"
	"cv-chat-go/pkg/qdrant"
	"cv-chat-go/pkg/storage"
	"cv-chat-go/pkg/tika"
	"cv-chat-go/pkg/vectorstore"
	"cv-chat-go/pkg/vectorstore/memory"
	"cv-chat-go/pkg/weaviate"

	"github.com/go-redis/redis/v8"
)

// app holds every wired component. Optional backends stay nil when they are
// not configured.
type app struct {
	cfg *config.Config

	index    vectorstore.Index
	embedder embedding.Client
	rdb      *redis.Client
	producer *kafka.Producer

	corpora repository.CorpusRepository

	corpusService       service.CorpusService
	chatService         service.ChatService
	conversationService service.ConversationService
	ingestionService    service.IngestionService
	auditService        *service.AuditService
}

func newIndex(cfg config.VectorStoreConfig) (vectorstore.Index, error) {
	switch cfg.Type {
	case "", "qdrant":
		return qdrant.NewClient(cfg.Qdrant)
	case "elasticsearch", "es":
		return es.NewClient(cfg.Elasticsearch)
	case "weaviate":
		return weaviate.NewClient(cfg.Weaviate)
	case "memory":
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown vector store type %q", cfg.Type)
	}
}

func newExtractor(cfg config.TikaConfig) *extract.Extractor {
	// a nil *tika.Client must not reach the interface
	if c := tika.NewClient(cfg); c != nil {
		log.Infof("Tika fallback enabled at %s", cfg.ServerURL)
		return extract.New(c)
	}
	return extract.New(nil)
}

// buildApp connects to every configured backend and wires the services.
func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	database.InitDB(cfg.Database.Driver, cfg.Database.DSN, &model.Corpus{}, &model.Segment{}, &model.Exchange{})

	a := &app{cfg: cfg}

	var err error
	if a.index, err = newIndex(cfg.VectorStore); err != nil {
		return nil, fmt.Errorf("vector store: %w", err)
	}
	log.Infof("vector store: %s", cfg.VectorStore.Type)

	if a.embedder, err = embedding.NewClient(ctx, cfg.Embedding); err != nil {
		return nil, fmt.Errorf("embedding client: %w", err)
	}
	llmClient, err := llm.NewClient(ctx, cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("llm client: %w", err)
	}
	generator := llm.NewGenerator(llmClient, cfg.LLM.Prompt)

	var statuses repository.IngestionRepository
	if cfg.Database.Redis.Addr != "" {
		database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
		a.rdb = database.RDB
		statuses = repository.NewIngestionRepository(a.rdb)
	}

	var store service.ObjectStore
	if cfg.MinIO.Endpoint != "" {
		minioStore, err := storage.NewMinIOStore(ctx, cfg.MinIO)
		if err != nil {
			return nil, fmt.Errorf("minio: %w", err)
		}
		store = minioStore
	}

	var publisher service.TaskPublisher
	if cfg.Kafka.Brokers != "" {
		a.producer = kafka.NewProducer(cfg.Kafka)
		publisher = a.producer
	}

	a.corpora = repository.NewCorpusRepository(database.DB)
	exchanges := repository.NewExchangeRepository(database.DB)

	processor := pipeline.NewProcessor(
		newExtractor(cfg.Tika),
		a.embedder,
		a.index,
		a.corpora,
		cfg.Chunking,
		cfg.Embedding,
		cfg.VectorStore.CollectionPrefix,
	)

	a.corpusService = service.NewCorpusService(a.corpora, a.index, store)
	a.chatService = service.NewChatService(a.corpora, exchanges, a.embedder, a.index, generator, cfg.Retrieval.Limit)
	a.conversationService = service.NewConversationService(exchanges)
	a.ingestionService = service.NewIngestionService(processor, store, publisher, statuses)
	a.auditService = service.NewAuditService(a.corpora, a.index)
	return a, nil
}

// asyncIngestion reports whether queued ingestion has every backend it needs.
func (a *app) asyncIngestion() bool {
	return a.producer != nil && a.rdb != nil && a.cfg.MinIO.Endpoint != ""
}

func (a *app) close() {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			log.Error("failed to close Kafka producer", err)
		}
	}
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			log.Error("failed to close Redis client", err)
		}
	}
	if database.DB != nil {
		if sqlDB, err := database.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}

// Package app 负责组装两个可执行程序共用的依赖。
package app

import (
	"context"
	"docqa-go/internal/config"
	"docqa-go/internal/handler"
	"docqa-go/internal/index"
	"docqa-go/internal/model"
	"docqa-go/internal/ocr"
	"docqa-go/internal/pipeline"
	"docqa-go/internal/repository"
	"docqa-go/internal/service"
	"docqa-go/pkg/database"
	"docqa-go/pkg/embedding"
	"docqa-go/pkg/es"
	"docqa-go/pkg/kafka"
	"docqa-go/pkg/llm"
	"docqa-go/pkg/log"
	"docqa-go/pkg/storage"
	"docqa-go/pkg/textract"
	"docqa-go/pkg/tika"
	"docqa-go/pkg/token"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// App 持有所有已初始化的客户端和服务。
type App struct {
	Config *config.Config

	DB       *gorm.DB
	Redis    *redis.Client
	Store    *storage.Client
	ES       *es.Client
	Index    *index.ESIndex
	JWT      *token.JWTManager
	Producer *kafka.Producer

	Documents repository.DocumentRepository
	Processor *pipeline.Processor
}

// New 按配置初始化所有依赖。MySQL DSN 或 Redis 地址为空时跳过对应的持久化层。
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	if cfg.Database.MySQL.DSN != "" {
		db, err := database.NewMySQL(cfg.Database.MySQL.DSN)
		if err != nil {
			return nil, err
		}
		if err := db.AutoMigrate(&model.Document{}); err != nil {
			return nil, fmt.Errorf("failed to migrate documents table: %w", err)
		}
		a.DB = db
		a.Documents = repository.NewDocumentRepository(db)
	}

	var summaries repository.SummaryRepository
	if cfg.Database.Redis.Addr != "" {
		rdb, err := database.NewRedis(ctx, cfg.Database.Redis)
		if err != nil {
			return nil, err
		}
		a.Redis = rdb
		summaries = repository.NewSummaryRepository(rdb, cfg.RAG.SummaryTTL)
	}

	store, err := storage.NewClient(ctx, cfg.MinIO)
	if err != nil {
		return nil, err
	}
	a.Store = store
	extractions, err := repository.NewExtractionRepository(store)
	if err != nil {
		return nil, err
	}

	esClient, err := es.NewClient(cfg.Elasticsearch)
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}
	a.ES = esClient
	a.Index = index.NewESIndex(esClient, embedding.NewClient(cfg.Embedding), cfg.Elasticsearch.IndexName, cfg.Elasticsearch.Dims)
	if err := a.Index.EnsureSchema(ctx); err != nil {
		return nil, err
	}

	extractor, err := newExtractor(ctx, cfg)
	if err != nil {
		return nil, err
	}

	llmClient := llm.NewClient(cfg.LLM)
	prompts := service.PromptsFromConfig(cfg.RAG.Prompt)
	rewriter := service.NewRewriter(llmClient, prompts, service.RewriteOptions{
		Disambiguate: cfg.RAG.Rewrite.Disambiguate,
		Simplify:     cfg.RAG.Rewrite.Simplify,
	})
	answers := service.NewAnswerService(a.Index, llmClient, rewriter, prompts, service.AnswerOptions{
		TopK:        cfg.RAG.TopK,
		Concurrency: cfg.RAG.Concurrency,
		Placeholder: cfg.RAG.Placeholder,
	})
	summarizer := service.NewSummaryService(llmClient, summaries, a.Documents, prompts, cfg.RAG.SummaryChars)
	indexer := index.NewIndexer(a.Index, index.Options{
		ChunkSize:    cfg.RAG.ChunkSize,
		ChunkOverlap: cfg.RAG.ChunkOverlap,
		BatchSize:    cfg.RAG.BatchSize,
	})

	a.Processor = pipeline.NewProcessor(pipeline.Deps{
		Store:       store,
		Extractions: extractions,
		Documents:   a.Documents,
		Extractor:   extractor,
		Indexer:     indexer,
		Summaries:   summarizer,
		Answers:     answers,
	}, pipeline.Options{IndexTables: cfg.RAG.IndexTables})

	if cfg.Auth.Enabled {
		a.JWT = token.NewJWTManager(cfg.Auth.Secret, cfg.Auth.TokenExpireHours)
	}
	if cfg.Kafka.Enabled {
		a.Producer = kafka.NewProducer(cfg.Kafka)
	}

	log.Infof("[App] 依赖初始化完成, ocr: %s, mysql: %t, redis: %t, kafka: %t",
		cfg.OCR.Provider, a.DB != nil, a.Redis != nil, a.Producer != nil)
	return a, nil
}

func newExtractor(ctx context.Context, cfg *config.Config) (ocr.Extractor, error) {
	switch cfg.OCR.Provider {
	case "tika":
		return ocr.NewTikaExtractor(tika.NewClient(cfg.Tika)), nil
	case "textract":
		client, err := textract.NewClient(ctx, cfg.AWS)
		if err != nil {
			return nil, err
		}
		runner := ocr.NewRunner(client,
			ocr.WithPollInterval(cfg.OCR.PollInterval),
			ocr.WithTimeout(cfg.OCR.Timeout),
			ocr.WithMaxRetries(cfg.OCR.MaxRetries),
		)
		return ocr.NewTextractExtractor(runner, textract.ParseFeatures(cfg.OCR.Features)), nil
	default:
		return nil, fmt.Errorf("unknown ocr provider %q", cfg.OCR.Provider)
	}
}

// Router 创建 HTTP 路由。
func (a *App) Router() *gin.Engine {
	var producer handler.TaskProducer
	if a.Producer != nil {
		producer = a.Producer
	}
	maxBytes := a.Config.Server.MaxDocumentBytes
	return handler.NewRouter(a.JWT, handler.Handlers{
		QA: handler.NewQAHandler(a.Processor,
			handler.NewDownloader(a.Config.Server.DownloadTimeout, maxBytes),
			maxBytes, a.Config.Server.RequestTimeout),
		Documents: handler.NewDocumentHandler(a.Processor, a.Documents, a.Store, producer, a.Store.Bucket(), maxBytes),
		Health:    handler.NewHealthHandler(a.healthChecks()),
	})
}

func (a *App) healthChecks() map[string]handler.HealthCheck {
	checks := map[string]handler.HealthCheck{
		"elasticsearch": a.ES.Ping,
	}
	if a.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return a.Redis.Ping(ctx).Err() }
	}
	if a.DB != nil {
		checks["mysql"] = func(ctx context.Context) error {
			sqlDB, err := a.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}
	}
	return checks
}

// NewConsumer 创建摄取任务消费者，Kafka 未启用时返回 nil。
func (a *App) NewConsumer() *kafka.Consumer {
	if !a.Config.Kafka.Enabled {
		return nil
	}
	var attempts kafka.AttemptCounter
	if a.Redis != nil {
		attempts = kafka.NewRedisAttemptCounter(a.Redis)
	}
	return kafka.NewConsumer(a.Config.Kafka, pipeline.NewTaskProcessor(a.Processor), attempts)
}

// Close 释放所有连接。
func (a *App) Close() {
	if a.Producer != nil {
		if err := a.Producer.Close(); err != nil {
			log.Warnf("[App] 关闭 Kafka producer 失败: %v", err)
		}
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/policy-rag/backend/internal/api/handlers"
	cacheredis "github.com/policy-rag/backend/internal/cache/redis"
	"github.com/policy-rag/backend/internal/chunker"
	"github.com/policy-rag/backend/internal/embedding"
	"github.com/policy-rag/backend/internal/evaluation"
	"github.com/policy-rag/backend/internal/ingestion"
	"github.com/policy-rag/backend/internal/llm"
	"github.com/policy-rag/backend/internal/metrics"
	"github.com/policy-rag/backend/internal/middleware/ratelimit"
	"github.com/policy-rag/backend/internal/middleware/security"
	"github.com/policy-rag/backend/internal/middleware/validation"
	"github.com/policy-rag/backend/internal/rag"
	"github.com/policy-rag/backend/internal/retriever"
	"github.com/policy-rag/backend/internal/search/web"
	"github.com/policy-rag/backend/internal/storage/sqlite"
	"github.com/policy-rag/backend/internal/vector"
	"github.com/policy-rag/backend/internal/vector/flat"
	"github.com/policy-rag/backend/internal/vector/milvus"
	"github.com/policy-rag/backend/pkg/config"
	appLogger "github.com/policy-rag/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting Policy RAG API Server")

	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	if err := sqliteClient.InitSchema(); err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	var cacheClient *cacheredis.Client
	if cfg.Redis.Enabled {
		cacheClient, err = cacheredis.NewClient(cfg.Redis)
		if err != nil {
			appLogger.Warn("Redis unavailable, running without cache", zap.Error(err))
			cacheClient = nil
		} else {
			defer cacheClient.Close()
		}
	}

	// A broken embedder is fatal: ingestion and query both depend on it.
	embedder, err := embedding.NewFromConfig(cfg.Embedding)
	if err != nil {
		appLogger.Fatal("Failed to create embedder", zap.Error(err))
	}
	if cacheClient != nil {
		embedder = embedding.NewCachedEmbedder(embedder, cacheClient)
	}

	var store vector.Store
	switch cfg.Vector.Backend {
	case "milvus":
		store, err = milvus.NewStore(cfg.Vector.Endpoint, cfg.Vector.CollectionName, embedder.Dimension())
	default:
		store, err = flat.NewStore(cfg.Vector.Path, embedder.Dimension())
	}
	if err != nil {
		appLogger.Fatal("Failed to create vector store", zap.Error(err))
	}
	defer store.Close()

	generator, err := llm.NewFromConfig(cfg.LLM)
	if err != nil {
		appLogger.Fatal("Failed to create generator", zap.Error(err))
	}
	if generator == nil {
		appLogger.Warn("No LLM provider configured, answers degrade to extractive mode")
	}

	var searcher rag.Searcher
	if cfg.Search.Enabled {
		searcher = web.NewClient(cfg.Search)
	}

	chnk := chunker.New(cfg.Chunking.MaxSize, cfg.Chunking.Overlap)
	ret := retriever.New(embedder, store, cfg.Retrieval.TopK)

	var answerCache rag.AnswerCache
	var invalidator ingestion.AnswerInvalidator
	if cacheClient != nil {
		answerCache = cacheClient
		invalidator = cacheClient
	}

	pipeline := rag.NewPipeline(ret, generator, searcher, answerCache, sqliteClient)
	processor := ingestion.NewProcessor(chnk, embedder, store, sqliteClient, invalidator)
	evaluator := evaluation.New(pipeline, sqliteClient, cfg.Retrieval.TopK)

	metrics.ChunksIndexed.Set(float64(store.Size()))

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		IsDevelopment: cfg.Logging.Level == "debug",
	}))

	limiter := ratelimit.New(ratelimit.Config{Logger: appLogger.GetLogger()})
	defer limiter.Stop()
	app.Use(limiter.Middleware())

	app.Use(validation.Middleware(validation.Config{
		MaxDocumentSize: cfg.Server.BodyLimit,
		Logger:          appLogger.GetLogger(),
	}))

	queryHandler := handlers.NewQueryHandler(pipeline, sqliteClient)
	documentHandler := handlers.NewDocumentHandler(processor, sqliteClient)
	evalHandler := handlers.NewEvalHandler(evaluator)
	wsHandler := handlers.NewWebSocketHandler(pipeline)

	api := app.Group("/api/v1")

	api.Post("/query", queryHandler.HandleQuery)
	api.Get("/query/history", queryHandler.GetQueryHistory)
	api.Post("/feedback", queryHandler.SubmitFeedback)
	api.Get("/stats", queryHandler.GetStats)

	api.Post("/documents", documentHandler.UploadDocument)
	api.Post("/documents/batch", documentHandler.UploadBatch)
	api.Get("/documents", documentHandler.ListDocuments)

	api.Post("/evaluate", evalHandler.RunEvaluation)

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	api.Get("/ready", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ready",
			"chunks": store.Size(),
		})
	})

	app.Get("/metrics", metrics.MetricsHandler())

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/chat", websocket.New(wsHandler.HandleConnection))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	app.Shutdown()
	appLogger.Info("Server stopped")
}

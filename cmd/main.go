package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"docquery-platform/internal/auth"
	"docquery-platform/internal/chunker"
	"docquery-platform/internal/config"
	"docquery-platform/internal/embeddings"
	"docquery-platform/internal/ingest"
	"docquery-platform/internal/llm"
	"docquery-platform/internal/logger"
	"docquery-platform/internal/query"
	"docquery-platform/internal/telemetry"
	"docquery-platform/internal/vectorstore"
	"docquery-platform/middleware"
	"docquery-platform/routes"
	"docquery-platform/services"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	// Tracing is best-effort: a missing collector must not block startup.
	shutdownTracer, err := telemetry.InitTracer("docquery-api")
	if err != nil {
		logger.Warn("Tracing disabled", "error", err)
	} else {
		defer shutdownTracer()
	}

	// Connect to MongoDB
	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mongoClient.Disconnect(ctx)
	}()
	db := mongoClient.Database(cfg.DBName)

	// Connect to Redis
	rdb, err := config.NewRedisClient(cfg)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer rdb.Close()

	// Vector store
	store, err := vectorstore.New(vectorstore.Config{
		Backend:      cfg.VectorBackend,
		Collection:   cfg.VectorCollection,
		Dimension:    cfg.VectorDimensions,
		MilvusURI:    cfg.MilvusURI,
		MilvusToken:  cfg.MilvusToken,
		QdrantURL:    cfg.QdrantURL,
		QdrantAPIKey: cfg.QdrantAPIKey,
	})
	if err != nil {
		log.Fatal("Failed to build vector store:", err)
	}
	defer store.Close()

	ensureCtx, ensureCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := store.EnsureCollection(ensureCtx); err != nil {
		logger.Warn("Vector collection not ready, continuing", "error", err)
	}
	ensureCancel()

	// Embeddings
	embedder, err := embeddings.NewJinaClient(embeddings.JinaConfig{
		APIKey:    cfg.JinaAPIKey,
		APIURL:    cfg.JinaAPIURL,
		Model:     cfg.EmbeddingModel,
		Dimension: cfg.VectorDimensions,
		Timeout:   cfg.EmbedTimeout,
	})
	if err != nil {
		log.Fatal("Failed to build embeddings client:", err)
	}

	// Generation and ingestion
	generator := llm.NewGenerator(cfg)
	summarizer := services.NewSummarizationService(generator, db)
	ch := chunker.New(cfg.ChunkSizeWords, cfg.ChunkOverlapWords, cfg.MinChunkWords)
	coordinator := ingest.NewCoordinator(db, store, embedder, ch, summarizer)

	// Asynq client for async processing of large uploads
	asynqClient := asynq.NewClient(config.AsynqRedisOpt(cfg))
	defer asynqClient.Close()

	// Auth
	tokens, err := auth.NewManager(cfg, rdb)
	if err != nil {
		log.Fatal("Failed to build token manager:", err)
	}

	// Services
	docService := services.NewDocumentService(cfg, db, coordinator, asynqClient)
	queryService := query.NewService(store, embedder, generator, db, cfg.SearchLimit)
	chatService := services.NewChatService(db, queryService, generator)
	settingsService := services.NewSettingsService(db)
	exportService := services.NewExportService(db)
	actionItemService := services.NewActionItemService(generator, db, coordinator)

	// Background maintenance
	cron := services.NewCronService(db, store, cfg.StaleProcessingAfter)
	cron.Start()
	defer cron.Stop()

	// Initialize Gin router
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("docquery-api"))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.RateLimitMiddleware(rdb, cfg))

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(tokens)

	// Setup routes
	routes.SetupHealthRoutes(router, mongoClient, rdb, store)
	routes.SetupAuthRoutes(router, cfg, db, tokens, authMiddleware)
	routes.SetupDocumentRoutes(router, docService, actionItemService, authMiddleware)
	routes.SetupQueryRoutes(router, queryService, settingsService, authMiddleware)
	routes.SetupChatRoutes(router, chatService, exportService, authMiddleware)
	routes.SetupSettingsRoutes(router, settingsService, exportService, authMiddleware)

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Server starting", "port", cfg.Port, "vector_backend", cfg.VectorBackend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	logger.Info("Server exited")
}

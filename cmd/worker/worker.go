package main

import (
	"context"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"docquery-platform/internal/chunker"
	"docquery-platform/internal/config"
	"docquery-platform/internal/embeddings"
	"docquery-platform/internal/ingest"
	"docquery-platform/internal/llm"
	"docquery-platform/internal/logger"
	"docquery-platform/internal/queue"
	"docquery-platform/internal/vectorstore"
	"docquery-platform/services"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

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

	// Ingestion pipeline
	generator := llm.NewGenerator(cfg)
	summarizer := services.NewSummarizationService(generator, db)
	ch := chunker.New(cfg.ChunkSizeWords, cfg.ChunkOverlapWords, cfg.MinChunkWords)
	coordinator := ingest.NewCoordinator(db, store, embedder, ch, summarizer)

	// Redis options for Asynq
	redisOpt := config.AsynqRedisOpt(cfg)

	// Create Asynq server
	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			StrictPriority: true,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("Task failed", "type", task.Type(), "error", err)
			}),
		},
	)

	// Create task processor
	processor := queue.NewTaskProcessor(coordinator)

	// Create mux and register handlers
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskProcessDocument, processor.ProcessDocument)
	mux.HandleFunc(queue.TaskReprocessDocument, processor.ReprocessDocument)

	logger.Info("Starting ingestion worker",
		"concurrency", 10,
		"redis", redisOpt.Addr,
		"vector_backend", cfg.VectorBackend)

	// Start the server
	if err := server.Run(mux); err != nil {
		log.Fatal("Failed to start worker:", err)
	}
}

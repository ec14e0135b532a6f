package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port        string
	GinMode     string
	CORSOrigins []string

	// MongoDB
	MongoURI string
	DBName   string

	// Redis (asynq queue + rate limiting)
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// JWT
	AccessSecret     string
	RefreshSecret    string
	AccessExpiresIn  time.Duration
	RefreshExpiresIn time.Duration
	BcryptCost       int

	// File upload
	MaxFileSize         int64
	AllowedExtensions   []string
	FileStorageDir      string
	SyncProcessingLimit int64 // files above this are queued for async processing

	// Embeddings (Jina)
	JinaAPIKey       string
	JinaAPIURL       string
	EmbeddingModel   string
	VectorDimensions int
	EmbedTimeout     time.Duration

	// Vector store
	VectorBackend    string // "milvus", "qdrant" or "memory"
	MilvusURI        string
	MilvusToken      string
	QdrantURL        string
	QdrantAPIKey     string
	VectorCollection string

	// LLM providers
	LLMProvider       string // system default provider
	LLMModel          string
	GroqAPIKey        string
	GeminiAPIKey      string
	OpenAIAPIKey      string
	AnthropicAPIKey   string
	GenerationTimeout time.Duration

	// Chunking
	ChunkSizeWords    int
	ChunkOverlapWords int
	MinChunkWords     int

	// Retrieval
	SearchLimit int

	// Rate limiting
	RateLimitReqs   int
	RateLimitWindow int

	// Crawl
	CrawlMaxPages int

	// Maintenance
	StaleProcessingAfter time.Duration
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		GinMode:     getEnv("GIN_MODE", "debug"),
		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:8080"), ","),

		MongoURI: getEnv("MONGO_URI", "mongodb://localhost:27017/docquery"),
		DBName:   getEnv("DB_NAME", "docquery"),

		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		AccessSecret:     getEnv("ACCESS_SECRET", ""),
		RefreshSecret:    getEnv("REFRESH_SECRET", ""),
		AccessExpiresIn:  getEnvDuration("ACCESS_EXPIRES_IN", 30*time.Minute),
		RefreshExpiresIn: getEnvDuration("REFRESH_EXPIRES_IN", 7*24*time.Hour),
		BcryptCost:       getEnvInt("BCRYPT_COST", 12),

		MaxFileSize:         getEnvInt64("MAX_FILE_SIZE", 52428800), // 50MB
		AllowedExtensions:   strings.Split(getEnv("ALLOWED_EXTENSIONS", "pdf,txt,md,html"), ","),
		FileStorageDir:      getEnv("FILE_STORAGE_DIR", "./storage"),
		SyncProcessingLimit: getEnvInt64("SYNC_PROCESSING_LIMIT", 20971520), // 20MB

		JinaAPIKey:       getEnv("JINA_API_KEY", ""),
		JinaAPIURL:       getEnv("JINA_API_URL", "https://api.jina.ai/v1/embeddings"),
		EmbeddingModel:   getEnv("EMBEDDING_MODEL", "jina-embeddings-v3"),
		VectorDimensions: getEnvInt("VECTOR_DIM", 1024),
		EmbedTimeout:     getEnvDuration("EMBED_TIMEOUT", 30*time.Second),

		VectorBackend:    getEnv("VECTOR_BACKEND", "milvus"),
		MilvusURI:        getEnv("MILVUS_URI", ""),
		MilvusToken:      getEnv("MILVUS_TOKEN", ""),
		QdrantURL:        getEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantAPIKey:     getEnv("QDRANT_API_KEY", ""),
		VectorCollection: getEnv("VECTOR_COLLECTION", "DocQueryChunks"),

		LLMProvider:       getEnv("LLM_PROVIDER", "groq"),
		LLMModel:          getEnv("LLM_MODEL", "llama-3.3-70b-versatile"),
		GroqAPIKey:        getEnv("GROQ_API_KEY", ""),
		GeminiAPIKey:      getEnv("GEMINI_API_KEY", ""),
		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		AnthropicAPIKey:   getEnv("ANTHROPIC_API_KEY", ""),
		GenerationTimeout: getEnvDuration("GENERATION_TIMEOUT", 120*time.Second),

		ChunkSizeWords:    getEnvInt("CHUNK_SIZE_WORDS", 200),
		ChunkOverlapWords: getEnvInt("CHUNK_OVERLAP_WORDS", 30),
		MinChunkWords:     getEnvInt("MIN_CHUNK_WORDS", 20),

		SearchLimit: getEnvInt("SEARCH_LIMIT", 3),

		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),

		CrawlMaxPages: getEnvInt("CRAWL_MAX_PAGES", 25),

		StaleProcessingAfter: getEnvDuration("STALE_PROCESSING_AFTER", 30*time.Minute),
	}

	// Validate required fields
	if cfg.AccessSecret == "" {
		return nil, fmt.Errorf("ACCESS_SECRET is required - set it in .env file")
	}

	if cfg.RefreshSecret == "" {
		return nil, fmt.Errorf("REFRESH_SECRET is required - set it in .env file")
	}

	if cfg.JinaAPIKey == "" {
		return nil, fmt.Errorf("JINA_API_KEY is required - set it in .env file")
	}

	if cfg.ChunkOverlapWords >= cfg.ChunkSizeWords {
		return nil, fmt.Errorf("CHUNK_OVERLAP_WORDS must be smaller than CHUNK_SIZE_WORDS")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

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
	MongoURI    string
	DBName      string
	JWTSecret   string
	Port        string
	GinMode     string
	CORSOrigins []string
	MaxFileSize int64

	// Rate limiting for LLM-backed endpoints
	RateLimitReqs   int
	RateLimitWindow int

	// Chunking
	MaxChunkSize int
	ChunkOverlap int

	// Storage
	FileStorageDir      string
	IndexDir            string
	IndexCompression    string
	MaxDocumentsPerUser int64

	// Redis Configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// Gemini
	GeminiAPIKey          string
	GeminiModel           string
	GeminiTier            string
	GoogleEmbeddingsModel string
	VectorDimensions      int

	// Retrieval and generation
	SearchTopK        int
	QuizContentBudget int

	// Worker
	WorkerConcurrency int
	SweepInterval     time.Duration
	StaleIngestAfter  time.Duration

	// Telemetry
	OTelEndpoint string
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		MongoURI:    getEnv("MONGO_URI", "mongodb://localhost:27017/study_assistant"),
		DBName:      getEnv("DB_NAME", "study_assistant"),
		JWTSecret:   getEnv("JWT_SECRET", ""),
		Port:        getEnv("PORT", "8080"),
		GinMode:     getEnv("GIN_MODE", "debug"),
		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173"), ","),
		MaxFileSize: getEnvInt64("MAX_FILE_SIZE", 52428800), // 50MB

		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 30),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),

		MaxChunkSize: getEnvInt("MAX_CHUNK_SIZE", 1000),
		ChunkOverlap: getEnvInt("CHUNK_OVERLAP", 200),

		FileStorageDir:      getEnv("FILE_STORAGE_DIR", "./storage"),
		IndexDir:            getEnv("INDEX_DIR", "./storage/vector_index"),
		IndexCompression:    getEnv("INDEX_COMPRESSION", "brotli"),
		MaxDocumentsPerUser: getEnvInt64("MAX_DOCUMENTS_PER_USER", 50),

		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		GeminiAPIKey:          getEnv("GEMINI_API_KEY", ""),
		GeminiModel:           getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		GeminiTier:            getEnv("GEMINI_TIER", "free"),
		GoogleEmbeddingsModel: getEnv("GOOGLE_EMBEDDINGS_MODEL", "text-embedding-004"),
		VectorDimensions:      getEnvInt("VECTOR_DIM", 768),

		SearchTopK:        getEnvInt("SEARCH_TOP_K", 3),
		QuizContentBudget: getEnvInt("QUIZ_CONTENT_BUDGET", 8000),

		WorkerConcurrency: getEnvInt("WORKER_CONCURRENCY", 10),
		SweepInterval:     getEnvDuration("SWEEP_INTERVAL", 5*time.Minute),
		StaleIngestAfter:  getEnvDuration("STALE_INGEST_AFTER", 30*time.Minute),

		OTelEndpoint: getEnv("OTEL_EXPORTER_ENDPOINT", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required - set it in .env file")
	}

	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required - set it in .env file")
	}

	if c.MaxChunkSize <= 0 {
		return fmt.Errorf("MAX_CHUNK_SIZE must be positive, got %d", c.MaxChunkSize)
	}

	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.MaxChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP must be in [0, %d), got %d", c.MaxChunkSize, c.ChunkOverlap)
	}

	if c.VectorDimensions <= 0 {
		return fmt.Errorf("VECTOR_DIM must be positive, got %d", c.VectorDimensions)
	}

	return nil
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

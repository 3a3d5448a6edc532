package main

import (
	"context"
	"errors"
	"log"
	"math"
	"time"

	"study-assistant-platform/internal/ai"
	"study-assistant-platform/internal/chunker"
	"study-assistant-platform/internal/config"
	"study-assistant-platform/internal/database"
	"study-assistant-platform/internal/logger"
	"study-assistant-platform/internal/queue"
	"study-assistant-platform/internal/telemetry"
	"study-assistant-platform/internal/vectorindex"
	"study-assistant-platform/services"
	"study-assistant-platform/utils"

	"github.com/hibiken/asynq"
)

const serviceName = "study-assistant-worker"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	// Initialize structured logging
	logger.InitLogger(cfg.GinMode)

	// Initialize OpenTelemetry tracing and metrics

	shutdownTracer, err := telemetry.InitTracer(serviceName, cfg.OTelEndpoint, cfg.GinMode)
	if err != nil {
		log.Fatal("Failed to initialize tracer:", err)
	}
	defer shutdownTracer()

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		log.Fatal("Failed to initialize metrics:", err)
	}

	// Connect to MongoDB
	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer func() {
		ctx, cancel := utils.WithTimeout(context.Background())
		defer cancel()
		mongoClient.Disconnect(ctx)
	}()
	store := database.NewStore(mongoClient.Database(cfg.DBName))

	// Redis backs both the document lock and the task queue
	rdb, err := config.NewRedisClient(cfg)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer rdb.Close()

	redisOpt, err := config.AsynqRedisOpt(cfg)
	if err != nil {
		log.Fatal("Failed to configure task queue:", err)
	}

	// Embeddings and vector index store
	embedder, err := ai.NewGeminiEmbedder(context.Background(), cfg.GeminiAPIKey, cfg.GoogleEmbeddingsModel, cfg.VectorDimensions, cfg.GeminiTier, metrics)
	if err != nil {
		log.Fatal("Failed to initialize embedder:", err)
	}
	defer embedder.Close()

	compression, err := utils.ParseCompression(cfg.IndexCompression)
	if err != nil {
		log.Fatal("Invalid INDEX_COMPRESSION:", err)
	}
	indexes, err := vectorindex.NewStore(cfg.IndexDir, embedder, vectorindex.WithCompression(compression))
	if err != nil {
		log.Fatal("Failed to open vector index store:", err)
	}

	ch, err := chunker.New(cfg.MaxChunkSize, cfg.ChunkOverlap)
	if err != nil {
		log.Fatal("Invalid chunking configuration:", err)
	}

	processor := queue.NewTaskProcessor(
		store.Documents,
		store.Chunks,
		indexes,
		services.NewPDFPageExtractor(),
		ch,
		queue.NewRedisLocker(rdb),
		metrics,
	)

	queueClient := asynq.NewClient(redisOpt)
	defer queueClient.Close()
	queueInspector := asynq.NewInspector(redisOpt)
	defer queueInspector.Close()

	// The sweeper shares the inspector so archived tasks can be replaced
	sweeper := services.NewSweeper(store.Documents, queue.NewScheduler(queueClient, queueInspector), cfg.SweepInterval, cfg.StaleIngestAfter)
	if err := sweeper.Start(); err != nil {
		log.Fatal("Failed to start sweeper:", err)
	}
	defer sweeper.Stop()

	// Create asynq server; ingestion runs on the critical queue
	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.WorkerConcurrency,
			Queues: map[string]int{
				queue.QueueCritical: 6,
				queue.QueueDefault:  3,
			},
			// A busy document lock is retried without using up MaxRetry
			IsFailure:      queue.IsFailure,
			RetryDelayFunc: retryDelay,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				retried, _ := asynq.GetRetryCount(ctx)
				maxRetry, _ := asynq.GetMaxRetry(ctx)
				logger.Error("Task failed",
					"type", task.Type(),
					"retry", retried,
					"max_retry", maxRetry,
					"error", err,
				)
			}),
		},
	)

	// Register task handlers
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskIngestDocument, processor.HandleIngestTask)

	logger.Info("Starting ingestion worker",
		"concurrency", cfg.WorkerConcurrency,
		"queues", "critical(6), default(3)",
		"sweep_interval", cfg.SweepInterval.String(),
	)

	if err := server.Run(mux); err != nil {
		log.Fatal("Failed to start worker:", err)
	}
}

// retryDelay retries quickly while another worker holds the document lock and
// backs off exponentially for real failures.
func retryDelay(n int, err error, task *asynq.Task) time.Duration {
	if errors.Is(err, queue.ErrLockHeld) {
		return 15 * time.Second
	}
	return time.Duration(math.Pow(2, float64(n))) * 30 * time.Second
}

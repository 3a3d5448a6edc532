package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"study-assistant-platform/internal/ai"
	"study-assistant-platform/internal/config"
	"study-assistant-platform/internal/database"
	"study-assistant-platform/internal/logger"
	"study-assistant-platform/internal/progress"
	"study-assistant-platform/internal/queue"
	"study-assistant-platform/internal/quiz"
	"study-assistant-platform/internal/retriever"
	"study-assistant-platform/internal/telemetry"
	"study-assistant-platform/internal/vectorindex"
	"study-assistant-platform/middleware"
	"study-assistant-platform/routes"
	"study-assistant-platform/services"
	"study-assistant-platform/utils"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
)

const serviceName = "study-assistant-api"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg.GinMode)

	shutdownTracer, err := telemetry.InitTracer(serviceName, cfg.OTelEndpoint, cfg.GinMode)
	if err != nil {
		log.Fatal("Failed to initialize tracer:", err)
	}
	defer shutdownTracer()

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		log.Fatal("Failed to initialize metrics:", err)
	}

	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer func() {
		ctx, cancel := utils.WithTimeout(context.Background())
		defer cancel()
		mongoClient.Disconnect(ctx)
	}()

	db := mongoClient.Database(cfg.DBName)
	store := database.NewStore(db)
	if err := database.EnsureIndexes(context.Background(), db); err != nil {
		log.Fatal("Failed to create indexes:", err)
	}

	rdb, err := config.NewRedisClient(cfg)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer rdb.Close()

	redisOpt, err := config.AsynqRedisOpt(cfg)
	if err != nil {
		log.Fatal("Failed to configure task queue:", err)
	}
	queueClient := asynq.NewClient(redisOpt)
	defer queueClient.Close()
	queueInspector := asynq.NewInspector(redisOpt)
	defer queueInspector.Close()

	ctx := context.Background()
	llm, err := ai.NewGeminiClient(ctx, cfg.GeminiAPIKey, ai.GeminiOptions{
		Model:   cfg.GeminiModel,
		Tier:    cfg.GeminiTier,
		Metrics: metrics,
	})
	if err != nil {
		log.Fatal("Failed to initialize Gemini client:", err)
	}
	defer llm.Close()

	embedder, err := ai.NewGeminiEmbedder(ctx, cfg.GeminiAPIKey, cfg.GoogleEmbeddingsModel, cfg.VectorDimensions, cfg.GeminiTier, metrics)
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

	storage, err := services.NewFileStorageManager(cfg.FileStorageDir, cfg.MaxFileSize)
	if err != nil {
		log.Fatal("Failed to initialize file storage:", err)
	}

	tracker := progress.NewTracker(store.Progress)
	documentService := services.NewDocumentService(
		store.Documents,
		store.Chunks,
		indexes,
		storage,
		queue.NewScheduler(queueClient, queueInspector),
		retriever.New(indexes, embedder, metrics),
		services.DocumentServiceOptions{
			MaxDocumentsPerUser: cfg.MaxDocumentsPerUser,
			SearchTopK:          cfg.SearchTopK,
		},
		store.Attempts, store.Quizzes, store.Progress,
	)
	quizService := services.NewQuizService(
		store.Documents,
		store.Quizzes,
		store.Attempts,
		quiz.NewGenerator(llm, store.Chunks, store.Quizzes, cfg.QuizContentBudget, metrics),
		quiz.NewGrader(store.Attempts, quiz.NewEvaluator(llm), tracker, metrics),
		tracker,
	)

	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.TracingMiddleware(serviceName))
	router.Use(middleware.MetricsMiddleware(metrics))
	router.Use(middleware.CORSMiddlewareWithOrigins(cfg.CORSOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
	})
	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := utils.WithShortTimeout(c.Request.Context())
		defer cancel()
		if err := mongoClient.Ping(ctx, nil); err != nil {
			utils.RespondWithError(c, http.StatusServiceUnavailable, "not_ready", "MongoDB unavailable", nil)
			return
		}
		if err := rdb.Ping(ctx).Err(); err != nil {
			utils.RespondWithError(c, http.StatusServiceUnavailable, "not_ready", "Redis unavailable", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	window := time.Duration(cfg.RateLimitWindow) * time.Second
	api := router.Group("/api", middleware.RequireAuth(cfg.JWTSecret), middleware.EnrichTrace())
	routes.SetupDocumentRoutes(api, documentService, cfg.MaxFileSize)
	routes.SetupQuizRoutes(api, quizService, middleware.RateLimitMiddleware(rdb, cfg.RateLimitReqs, window))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Server starting", "port", cfg.Port, "mode", cfg.GinMode)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	logger.Info("Server exited")
}

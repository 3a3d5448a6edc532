package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"study-assistant-platform/internal/ai"
	"study-assistant-platform/internal/config"
	"study-assistant-platform/internal/database"
	"study-assistant-platform/internal/logger"
	"study-assistant-platform/internal/queue"
	"study-assistant-platform/internal/vectorindex"
	"study-assistant-platform/models"
	"study-assistant-platform/services"
	"study-assistant-platform/utils"

	"github.com/hibiken/asynq"
)

func usage() {
	fmt.Println("Usage: go run ./cmd/migrate <command>")
	fmt.Println("Commands:")
	fmt.Println("  ensure-indexes         - Create MongoDB indexes")
	fmt.Println("  reindex-all            - Reprocess every processed or failed document")
	fmt.Println("  verify-indexes [fix]   - Check vector index artifacts of processed documents; fix reprocesses broken ones")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	command := os.Args[1]

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.InitLogger(cfg.GinMode)

	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())

	db := mongoClient.Database(cfg.DBName)
	store := database.NewStore(db)
	ctx := context.Background()

	switch command {
	case "ensure-indexes":
		if err := database.EnsureIndexes(ctx, db); err != nil {
			log.Fatalf("Index creation failed: %v", err)
		}
		fmt.Println("Indexes created successfully!")

	case "reindex-all", "verify-indexes":
		docs, indexes, cleanup := newDocumentService(cfg, store)
		defer cleanup()

		if command == "reindex-all" {
			err = reindexAll(ctx, store, docs)
		} else {
			fix := len(os.Args) > 2 && os.Args[2] == "fix"
			err = verifyIndexes(ctx, store, indexes, docs, fix)
		}
		if err != nil {
			log.Fatalf("%s failed: %v", command, err)
		}

	default:
		fmt.Printf("Unknown command: %s\n", command)
		usage()
		os.Exit(1)
	}
}

func newDocumentService(cfg *config.Config, store *database.Store) (*services.DocumentService, *vectorindex.Store, func()) {
	redisOpt, err := config.AsynqRedisOpt(cfg)
	if err != nil {
		log.Fatalf("Failed to configure task queue: %v", err)
	}
	queueClient := asynq.NewClient(redisOpt)
	queueInspector := asynq.NewInspector(redisOpt)

	embedder, err := ai.NewGeminiEmbedder(context.Background(), cfg.GeminiAPIKey, cfg.GoogleEmbeddingsModel, cfg.VectorDimensions, cfg.GeminiTier, nil)
	if err != nil {
		log.Fatalf("Failed to initialize embedder: %v", err)
	}
	compression, err := utils.ParseCompression(cfg.IndexCompression)
	if err != nil {
		log.Fatalf("Invalid INDEX_COMPRESSION: %v", err)
	}
	indexes, err := vectorindex.NewStore(cfg.IndexDir, embedder, vectorindex.WithCompression(compression))
	if err != nil {
		log.Fatalf("Failed to open vector index store: %v", err)
	}
	storage, err := services.NewFileStorageManager(cfg.FileStorageDir, cfg.MaxFileSize)
	if err != nil {
		log.Fatalf("Failed to initialize file storage: %v", err)
	}

	svc := services.NewDocumentService(store.Documents, store.Chunks, indexes, storage,
		queue.NewScheduler(queueClient, queueInspector), nil, services.DocumentServiceOptions{})
	return svc, indexes, func() {
		queueClient.Close()
		queueInspector.Close()
		embedder.Close()
	}
}

func reindexAll(ctx context.Context, store *database.Store, docs *services.DocumentService) error {
	var scheduled int
	for _, status := range []models.DocumentStatus{models.StatusProcessed, models.StatusFailed} {
		list, err := store.Documents.ListByStatus(ctx, status)
		if err != nil {
			return err
		}
		for _, doc := range list {
			if _, err := docs.Reprocess(ctx, doc.ID, doc.UserID); err != nil {
				fmt.Printf("  %s: %v\n", doc.ID, err)
				continue
			}
			scheduled++
		}
	}
	fmt.Printf("Scheduled %d documents for reprocessing\n", scheduled)
	return nil
}

func verifyIndexes(ctx context.Context, store *database.Store, indexes *vectorindex.Store, docs *services.DocumentService, fix bool) error {
	list, err := store.Documents.ListByStatus(ctx, models.StatusProcessed)
	if err != nil {
		return err
	}

	var broken []models.Document
	for _, doc := range list {
		start := time.Now()
		idx, err := indexes.Load(doc.ID)
		var corrupt *vectorindex.IndexCorruptError
		switch {
		case errors.As(err, &corrupt):
			fmt.Printf("  %s: corrupt artifact: %v\n", doc.ID, corrupt.Err)
			broken = append(broken, doc)
		case errors.Is(err, vectorindex.ErrIndexNotFound):
			fmt.Printf("  %s: missing artifact\n", doc.ID)
			broken = append(broken, doc)
		case err != nil:
			return err
		case idx.Len() != doc.ChunkCount:
			fmt.Printf("  %s: %d entries, document records %d chunks\n", doc.ID, idx.Len(), doc.ChunkCount)
			broken = append(broken, doc)
		default:
			fmt.Printf("  %s: ok (%d entries, %s)\n", doc.ID, idx.Len(), time.Since(start).Round(time.Millisecond))
		}
	}

	fmt.Printf("Verified %d documents, %d broken\n", len(list), len(broken))
	if !fix {
		return nil
	}
	for _, doc := range broken {
		if _, err := docs.Reprocess(ctx, doc.ID, doc.UserID); err != nil {
			fmt.Printf("  %s: reprocess failed: %v\n", doc.ID, err)
		}
	}
	fmt.Printf("Scheduled %d documents for reprocessing\n", len(broken))
	return nil
}

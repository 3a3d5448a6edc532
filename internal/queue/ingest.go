package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"study-assistant-platform/internal/chunker"
	"study-assistant-platform/internal/database"
	"study-assistant-platform/internal/logger"
	"study-assistant-platform/internal/telemetry"
	"study-assistant-platform/internal/vectorindex"
	"study-assistant-platform/models"
	"study-assistant-platform/utils"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// lockTTL outlives the task timeout so a running job never loses its lock.
const lockTTL = ingestTimeout + time.Minute

type DocumentStore interface {
	Get(ctx context.Context, id string) (*models.Document, error)
	MarkProcessed(ctx context.Context, id string, generation int64, pageCount, chunkCount int) (bool, error)
	MarkFailed(ctx context.Context, id string, generation int64, reason string) (bool, error)
}

type ChunkStore interface {
	ReplaceChunks(ctx context.Context, documentID string, chunks []models.Chunk) error
	DeleteForDocument(ctx context.Context, documentID string) error
}

type IndexStore interface {
	Build(ctx context.Context, documentID string, chunks []models.Chunk) (*vectorindex.Index, error)
	Load(documentID string) (*vectorindex.Index, error)
	Delete(documentID string) error
}

// PageExtractor returns the text of every page of a stored file, in order.
type PageExtractor interface {
	ExtractPages(ctx context.Context, path string) ([]string, error)
}

// TaskProcessor runs ingestion jobs.
type TaskProcessor struct {
	docs      DocumentStore
	chunks    ChunkStore
	indexes   IndexStore
	extractor PageExtractor
	chunker   *chunker.Chunker
	locker    Locker
	metrics   *telemetry.Metrics
	logger    *slog.Logger
}

func NewTaskProcessor(docs DocumentStore, chunks ChunkStore, indexes IndexStore, extractor PageExtractor, ch *chunker.Chunker, locker Locker, metrics *telemetry.Metrics) *TaskProcessor {
	if ch == nil {
		ch = chunker.Default()
	}
	return &TaskProcessor{
		docs:      docs,
		chunks:    chunks,
		indexes:   indexes,
		extractor: extractor,
		chunker:   ch,
		locker:    locker,
		metrics:   metrics,
		logger:    logger.Get(),
	}
}

// HandleIngestTask is registered on the asynq mux for TaskIngestDocument.
func (p *TaskProcessor) HandleIngestTask(ctx context.Context, t *asynq.Task) error {
	var payload IngestPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}
	if payload.DocumentID == "" {
		return fmt.Errorf("ingest payload without document id: %w", asynq.SkipRetry)
	}
	return p.Ingest(ctx, payload)
}

// Ingest extracts, chunks, embeds and indexes one generation of a document.
// Only the generation named in the payload may move the document out of
// unprocessed, and a second delivery of a finished job does nothing.
func (p *TaskProcessor) Ingest(ctx context.Context, payload IngestPayload) error {
	// One delivery per document at a time. A busy lock is retried by asynq
	unlock, err := p.locker.TryLock(ctx, "ingest:"+payload.DocumentID, lockTTL)
	if err != nil {
		return fmt.Errorf("ingestion of %s not started: %w", payload.DocumentID, err)
	}
	defer func() {
		releaseCtx, cancel := utils.Detached(ctx, utils.ShortTimeout)
		defer cancel()
		if err := unlock(releaseCtx); err != nil {
			p.logger.Warn("Failed to release ingestion lock", "document_id", payload.DocumentID, "error", err)
		}
	}()

	// Load the current state under the lock
	doc, err := p.docs.Get(ctx, payload.DocumentID)
	if errors.Is(err, database.ErrNotFound) {
		p.logger.Info("Document deleted before ingestion", "document_id", payload.DocumentID)
		return fmt.Errorf("document %s not found: %w", payload.DocumentID, asynq.SkipRetry)
	}
	if err != nil {
		return fmt.Errorf("failed to load document: %w", err)
	}

	// A reprocess bumped the generation after this job was scheduled
	if doc.Generation != payload.Generation {
		p.logger.Info("Dropping stale ingestion job",
			"document_id", doc.ID,
			"job_generation", payload.Generation,
			"current_generation", doc.Generation,
		)
		return nil
	}

	// Redelivery of a finished job
	if doc.IsProcessed() {
		if _, err := p.indexes.Load(doc.ID); err == nil {
			p.logger.Debug("Document already ingested", "document_id", doc.ID, "generation", doc.Generation)
			return nil
		}
		p.logger.Warn("Processed document has no usable index, rebuilding", "document_id", doc.ID)
	}

	// Extract, chunk, embed and index
	start := time.Now()
	pages, chunkCount, err := p.run(ctx, doc)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		p.metrics.RecordIngestion(elapsed, "failed")
		p.fail(ctx, doc, err)
		return err
	}

	// Publish only if our generation is still current
	ok, err := p.docs.MarkProcessed(ctx, doc.ID, doc.Generation, pages, chunkCount)
	if err != nil {
		p.metrics.RecordIngestion(elapsed, "failed")
		p.fail(ctx, doc, err)
		return err
	}
	if !ok {
		// A reprocess request arrived while we were working. Its job waits
		// on our lock, so nothing newer has been written yet.
		p.metrics.RecordIngestion(elapsed, "superseded")
		p.logger.Info("Ingestion superseded, discarding output", "document_id", doc.ID, "generation", doc.Generation)
		p.discard(ctx, doc.ID)
		return nil
	}

	p.metrics.RecordIngestion(elapsed, "processed")
	p.logger.Info("Document ingested",
		"document_id", doc.ID,
		"generation", doc.Generation,
		"pages", pages,
		"chunks", chunkCount,
		"duration_s", elapsed,
	)
	return nil
}

func (p *TaskProcessor) run(ctx context.Context, doc *models.Document) (int, int, error) {
	// Pages without text stay in the slice so page numbers line up
	texts, err := p.extractor.ExtractPages(ctx, doc.FilePath)
	if err != nil {
		return 0, 0, fmt.Errorf("text extraction failed: %w", err)
	}

	pieces := p.chunker.SplitPages(texts)
	chunks := make([]models.Chunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = models.Chunk{
			ID:         uuid.NewString(),
			DocumentID: doc.ID,
			Index:      piece.Index,
			PageNumber: piece.Page,
			Content:    piece.Text,
		}
	}

	// The index file is replaced atomically before any chunk is written
	idx, err := p.indexes.Build(ctx, doc.ID, chunks)
	if err != nil {
		return 0, 0, fmt.Errorf("index build failed: %w", err)
	}

	// chunks keep the raw vectors, the index keeps unit-length copies
	vectors := make(map[string][]float32, idx.Len())
	for _, e := range idx.Entries {
		vectors[e.ChunkID] = e.Raw
	}
	for i := range chunks {
		chunks[i].Embedding = vectors[chunks[i].ID]
	}

	if err := p.chunks.ReplaceChunks(ctx, doc.ID, chunks); err != nil {
		return 0, 0, fmt.Errorf("failed to store chunks: %w", err)
	}
	return len(texts), len(chunks), nil
}

// fail records the failure and removes partial output. The job's context may
// already be cancelled, so cleanup runs detached from it.
func (p *TaskProcessor) fail(ctx context.Context, doc *models.Document, cause error) {
	ctx, cancel := utils.Detached(ctx, utils.CleanupTimeout)
	defer cancel()

	p.logger.Error("Ingestion failed", "document_id", doc.ID, "generation", doc.Generation, "error", cause)

	if _, err := p.docs.MarkFailed(ctx, doc.ID, doc.Generation, cause.Error()); err != nil {
		p.logger.Error("Failed to mark document failed", "document_id", doc.ID, "error", err)
	}
	p.removeOutput(ctx, doc.ID)
}

func (p *TaskProcessor) discard(ctx context.Context, documentID string) {
	ctx, cancel := utils.Detached(ctx, utils.CleanupTimeout)
	defer cancel()
	p.removeOutput(ctx, documentID)
}

func (p *TaskProcessor) removeOutput(ctx context.Context, documentID string) {
	if err := p.indexes.Delete(documentID); err != nil {
		p.logger.Error("Failed to delete vector index", "document_id", documentID, "error", err)
	}
	if err := p.chunks.DeleteForDocument(ctx, documentID); err != nil {
		p.logger.Error("Failed to delete chunks", "document_id", documentID, "error", err)
	}
}

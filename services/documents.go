package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"study-assistant-platform/internal/logger"
	"study-assistant-platform/internal/retriever"
	"study-assistant-platform/models"

	"github.com/google/uuid"
)

// DocumentRepository is the document persistence DocumentService needs.
type DocumentRepository interface {
	Create(ctx context.Context, doc *models.Document) error
	GetForUser(ctx context.Context, id, userID string) (*models.Document, error)
	ListForUser(ctx context.Context, userID string, status models.DocumentStatus) ([]models.Document, error)
	CountForUser(ctx context.Context, userID string) (int64, error)
	FindByHash(ctx context.Context, userID, hash string) (*models.Document, error)
	ResetForReprocess(ctx context.Context, id, userID string) (*models.Document, error)
	Delete(ctx context.Context, id string) error
}

type ChunkRepository interface {
	DeleteForDocument(ctx context.Context, documentID string) error
	ListChunks(ctx context.Context, documentID string) ([]models.Chunk, error)
}

// DocumentCascade removes records owned by a document.
type DocumentCascade interface {
	DeleteForDocument(ctx context.Context, documentID string) error
}

type IndexRemover interface {
	Delete(documentID string) error
}

type IngestionScheduler interface {
	EnqueueIngestion(ctx context.Context, documentID string, generation int64) (string, error)
}

type Searcher interface {
	Search(ctx context.Context, query string, documents []models.Document, k int) ([]retriever.SearchHit, error)
}

type DocumentServiceOptions struct {
	MaxDocumentsPerUser int64
	SearchTopK          int
}

type DocumentService struct {
	docs      DocumentRepository
	chunks    ChunkRepository
	cascades  []DocumentCascade
	indexes   IndexRemover
	storage   *FileStorageManager
	scheduler IngestionScheduler
	searcher  Searcher
	opts      DocumentServiceOptions
	logger    *slog.Logger
}

// NewDocumentService wires the service. cascades are called, in order, when a
// document is deleted; chunks are always removed after them.
func NewDocumentService(docs DocumentRepository, chunks ChunkRepository, indexes IndexRemover, storage *FileStorageManager, scheduler IngestionScheduler, searcher Searcher, opts DocumentServiceOptions, cascades ...DocumentCascade) *DocumentService {
	if opts.MaxDocumentsPerUser <= 0 {
		opts.MaxDocumentsPerUser = 50
	}
	if opts.SearchTopK <= 0 {
		opts.SearchTopK = 5
	}
	return &DocumentService{
		docs:      docs,
		chunks:    chunks,
		cascades:  cascades,
		indexes:   indexes,
		storage:   storage,
		scheduler: scheduler,
		searcher:  searcher,
		opts:      opts,
		logger:    logger.Get(),
	}
}

type UploadRequest struct {
	UserID       string
	Filename     string
	Title        string
	DocumentType string
	Size         int64
	Body         io.Reader
}

// Upload stores the file, records the document as unprocessed and schedules
// ingestion. Re-uploading identical bytes returns the existing document.
func (s *DocumentService) Upload(ctx context.Context, req UploadRequest) (*models.DocumentUploadResponse, error) {
	// Check the per-user document limit
	count, err := s.docs.CountForUser(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}
	if count >= s.opts.MaxDocumentsPerUser {
		return nil, fmt.Errorf("%w: maximum %d documents per user", ErrDocumentLimit, s.opts.MaxDocumentsPerUser)
	}

	docType := req.DocumentType
	switch docType {
	case "":
		docType = models.DocumentTypeUploaded
	case models.DocumentTypeUploaded, models.DocumentTypeNCERT:
	default:
		return nil, fmt.Errorf("%w: unknown document type %q", ErrInvalidUpload, docType)
	}

	// Store the file first so its hash is known
	stored, err := s.storage.Store(req.Body, req.Filename, req.UserID)
	if err != nil {
		return nil, err
	}

	// Same content uploaded before: keep the old record, drop the new file
	existing, err := s.docs.FindByHash(ctx, req.UserID, stored.Hash)
	if err != nil {
		s.storage.Remove(stored.Path)
		return nil, fmt.Errorf("duplicate check failed: %w", err)
	}
	if existing != nil {
		s.storage.Remove(stored.Path)
		return &models.DocumentUploadResponse{
			ID:       existing.ID,
			Title:    existing.Title,
			Status:   existing.Status,
			FileSize: existing.FileSize,
			Message:  "Document already uploaded",
		}, nil
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(req.Filename), filepath.Ext(req.Filename))
	}

	// Create the document record at generation 1
	now := time.Now().UTC()
	doc := &models.Document{
		ID:           uuid.NewString(),
		UserID:       req.UserID,
		Title:        title,
		DocumentType: docType,
		FilePath:     stored.Path,
		FileHash:     stored.Hash,
		Status:       models.StatusUnprocessed,
		Generation:   1,
		FileSize:     stored.Size,
		UploadedAt:   now,
		UpdatedAt:    now,
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		s.storage.Remove(stored.Path)
		return nil, fmt.Errorf("failed to save document: %w", err)
	}

	resp := &models.DocumentUploadResponse{
		ID:       doc.ID,
		Title:    doc.Title,
		Status:   doc.Status,
		FileSize: doc.FileSize,
		Message:  "Document uploaded, processing started",
	}

	// Queue ingestion
	taskID, err := s.scheduler.EnqueueIngestion(ctx, doc.ID, doc.Generation)
	if err != nil {
		// the sweeper re-enqueues documents left unprocessed
		s.logger.Error("Failed to schedule ingestion", "document_id", doc.ID, "error", err)
		resp.Message = "Document uploaded, processing will start shortly"
		return resp, nil
	}
	resp.TaskID = taskID
	return resp, nil
}

func (s *DocumentService) Get(ctx context.Context, id, userID string) (*models.Document, error) {
	return s.docs.GetForUser(ctx, id, userID)
}

func (s *DocumentService) List(ctx context.Context, userID string, status models.DocumentStatus) ([]models.Document, error) {
	return s.docs.ListForUser(ctx, userID, status)
}

// Chunks returns the stored chunks of one of the user's documents.
func (s *DocumentService) Chunks(ctx context.Context, id, userID string) ([]models.Chunk, error) {
	if _, err := s.docs.GetForUser(ctx, id, userID); err != nil {
		return nil, err
	}
	return s.chunks.ListChunks(ctx, id)
}

// Reprocess starts a new ingestion generation. Jobs still queued or running
// for older generations can no longer change the document.
func (s *DocumentService) Reprocess(ctx context.Context, id, userID string) (*models.DocumentUploadResponse, error) {
	doc, err := s.docs.ResetForReprocess(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	if err := s.indexes.Delete(doc.ID); err != nil {
		return nil, fmt.Errorf("failed to delete vector index: %w", err)
	}
	if err := s.chunks.DeleteForDocument(ctx, doc.ID); err != nil {
		return nil, fmt.Errorf("failed to delete chunks: %w", err)
	}

	resp := &models.DocumentUploadResponse{
		ID:       doc.ID,
		Title:    doc.Title,
		Status:   doc.Status,
		FileSize: doc.FileSize,
		Message:  "Reprocessing started",
	}
	taskID, err := s.scheduler.EnqueueIngestion(ctx, doc.ID, doc.Generation)
	if err != nil {
		return nil, fmt.Errorf("failed to schedule reprocessing: %w", err)
	}
	resp.TaskID = taskID

	s.logger.Info("Document reprocess requested", "document_id", doc.ID, "generation", doc.Generation)
	return resp, nil
}

// Delete removes the document together with everything derived from it.
func (s *DocumentService) Delete(ctx context.Context, id, userID string) error {
	doc, err := s.docs.GetForUser(ctx, id, userID)
	if err != nil {
		return err
	}

	// Quizzes, attempts and progress go first, then chunks and the index
	var errs []error
	for _, c := range s.cascades {
		if err := c.DeleteForDocument(ctx, doc.ID); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.chunks.DeleteForDocument(ctx, doc.ID); err != nil {
		errs = append(errs, err)
	}
	if err := s.indexes.Delete(doc.ID); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("failed to delete document data: %w", err)
	}

	// The record and file go last so a failed cascade can be retried
	if err := s.docs.Delete(ctx, doc.ID); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	s.storage.Remove(doc.FilePath)

	s.logger.Info("Document deleted", "document_id", doc.ID, "user_id", userID)
	return nil
}

type SearchRequest struct {
	UserID     string
	Query      string
	DocumentID string
	TopK       int
}

type SearchResponse struct {
	Query        string                `json:"query"`
	Results      []retriever.SearchHit `json:"results"`
	TotalResults int                   `json:"total_results"`
}

// Search queries the user's processed documents, or only DocumentID when set.
func (s *DocumentService) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	k := req.TopK
	if k <= 0 {
		k = s.opts.SearchTopK
	}

	var docs []models.Document
	if req.DocumentID != "" {
		doc, err := s.docs.GetForUser(ctx, req.DocumentID, req.UserID)
		if err != nil {
			return nil, err
		}
		if doc.IsProcessed() {
			docs = append(docs, *doc)
		}
	} else {
		var err error
		docs, err = s.docs.ListForUser(ctx, req.UserID, models.StatusProcessed)
		if err != nil {
			return nil, fmt.Errorf("failed to list documents: %w", err)
		}
	}
	if len(docs) == 0 {
		return nil, ErrNoProcessedDocuments
	}

	hits, err := s.searcher.Search(ctx, query, docs, k)
	if err != nil {
		return nil, err
	}
	return &SearchResponse{Query: query, Results: hits, TotalResults: len(hits)}, nil
}

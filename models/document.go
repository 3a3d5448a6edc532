package models

import (
	"time"
)

// DocumentStatus is the ingestion state of an uploaded document.
type DocumentStatus string

const (
	StatusUnprocessed DocumentStatus = "unprocessed"
	StatusProcessed   DocumentStatus = "processed"
	StatusFailed      DocumentStatus = "failed"
)

// Document types
const (
	DocumentTypeUploaded = "uploaded"
	DocumentTypeNCERT    = "ncert"
)

// Document is an uploaded source file. Chunks, its vector index, quizzes and
// attempts are owned by it and removed together with it.
type Document struct {
	ID           string         `bson:"_id" json:"id"`
	UserID       string         `bson:"user_id" json:"user_id"`
	Title        string         `bson:"title" json:"title"`
	DocumentType string         `bson:"document_type" json:"document_type"`
	FilePath     string         `bson:"file_path" json:"-"`
	FileHash     string         `bson:"file_hash" json:"file_hash"`
	Status       DocumentStatus `bson:"status" json:"status"`
	// Generation is bumped on every reprocess request. Ingestion jobs carry the
	// generation they were scheduled for and only that generation may change status.
	Generation   int64      `bson:"generation" json:"generation"`
	PageCount    int        `bson:"page_count" json:"page_count"`
	FileSize     int64      `bson:"file_size" json:"file_size"`
	ChunkCount   int        `bson:"chunk_count" json:"chunk_count"`
	ErrorMessage string     `bson:"error_message,omitempty" json:"error_message,omitempty"`
	UploadedAt   time.Time  `bson:"uploaded_at" json:"uploaded_at"`
	UpdatedAt    time.Time  `bson:"updated_at" json:"updated_at"`
	ProcessedAt  *time.Time `bson:"processed_at,omitempty" json:"processed_at,omitempty"`
}

// IsProcessed reports whether the document has a complete chunk set and index.
func (d *Document) IsProcessed() bool {
	return d.Status == StatusProcessed
}

// Chunk is an overlap-joined slice of a document's extracted text.
type Chunk struct {
	ID         string    `bson:"_id" json:"id"`
	DocumentID string    `bson:"document_id" json:"document_id"`
	Index      int       `bson:"chunk_index" json:"chunk_index"`
	PageNumber int       `bson:"page_number" json:"page_number"`
	Content    string    `bson:"content" json:"content"`
	Embedding  []float32 `bson:"embedding,omitempty" json:"-"`
}

// DocumentUploadResponse is returned after an upload has been accepted.
type DocumentUploadResponse struct {
	ID       string         `json:"id"`
	Title    string         `json:"title"`
	Status   DocumentStatus `json:"status"`
	FileSize int64          `json:"file_size"`
	TaskID   string         `json:"task_id,omitempty"`
	Message  string         `json:"message"`
}

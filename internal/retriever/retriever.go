// Package retriever runs a semantic query across a set of documents.
package retriever

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"study-assistant-platform/internal/ai"
	"study-assistant-platform/internal/logger"
	"study-assistant-platform/internal/telemetry"
	"study-assistant-platform/internal/vectorindex"
	"study-assistant-platform/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

type SearchHit struct {
	DocumentID    string  `json:"document_id"`
	DocumentTitle string  `json:"document_title"`
	ChunkIndex    int     `json:"chunk_index"`
	PageNumber    int     `json:"page_number"`
	Content       string  `json:"content"`
	Score         float64 `json:"similarity_score"`
}

// IndexReader is the read side of vectorindex.Store.
type IndexReader interface {
	Load(documentID string) (*vectorindex.Index, error)
	Query(idx *vectorindex.Index, vector []float32, k int) ([]vectorindex.Hit, error)
}

type Retriever struct {
	indexes  IndexReader
	embedder ai.Embedder
	logger   *slog.Logger
	metrics  *telemetry.Metrics
}

func New(indexes IndexReader, embedder ai.Embedder, metrics *telemetry.Metrics) *Retriever {
	return &Retriever{
		indexes:  indexes,
		embedder: embedder,
		logger:   logger.Get(),
		metrics:  metrics,
	}
}

type rankedHit struct {
	SearchHit
	docOrder int
}

// Search returns the global top k hits across all processed documents.
// Documents whose index cannot be loaded or queried are logged and skipped.
// Only a failure to embed the query itself is returned as an error.
func (r *Retriever) Search(ctx context.Context, query string, documents []models.Document, k int) ([]SearchHit, error) {
	start := time.Now()
	ctx, span := otel.Tracer("retriever").Start(ctx, "retriever.search")
	defer span.End()

	eligible := make([]models.Document, 0, len(documents))
	for _, d := range documents {
		if d.IsProcessed() {
			eligible = append(eligible, d)
		}
	}
	span.SetAttributes(attribute.Int("search.eligible_documents", len(eligible)), attribute.Int("search.k", k))

	if len(eligible) == 0 || k <= 0 {
		return []SearchHit{}, nil
	}

	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, &ai.EmbeddingServiceError{Model: r.embedder.Model(), Err: fmt.Errorf("expected 1 query vector, got %d", len(vectors))}
	}
	queryVector := vectors[0]

	var merged []rankedHit
	for order, doc := range eligible {
		docID := doc.ID
		idx, err := r.indexes.Load(docID)
		if err != nil {
			if errors.Is(err, vectorindex.ErrIndexNotFound) {
				r.logger.Warn("Skipping document without usable index", "document_id", docID, "error", err)
			} else {
				r.logger.Error("Failed to load index", "document_id", docID, "error", err)
			}
			continue
		}

		hits, err := r.indexes.Query(idx, queryVector, k)
		if err != nil {
			r.logger.Error("Failed to query index", "document_id", docID, "error", err)
			continue
		}
		for _, h := range hits {
			merged = append(merged, rankedHit{
				SearchHit: SearchHit{
					DocumentID:    docID,
					DocumentTitle: doc.Title,
					ChunkIndex:    h.ChunkIndex,
					PageNumber:    h.PageNumber,
					Content:       h.Content,
					Score:         h.Score,
				},
				docOrder: order,
			})
		}
	}

	sort.Slice(merged, func(i, j int) bool {
		a, b := merged[i], merged[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.docOrder != b.docOrder {
			return a.docOrder < b.docOrder
		}
		return a.ChunkIndex < b.ChunkIndex
	})
	if len(merged) > k {
		merged = merged[:k]
	}

	out := make([]SearchHit, len(merged))
	for i, h := range merged {
		out[i] = h.SearchHit
	}

	r.metrics.RecordSearch(time.Since(start).Seconds(), len(eligible), len(out))
	return out, nil
}

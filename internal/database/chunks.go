package database

import (
	"context"
	"fmt"

	"study-assistant-platform/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type ChunkRepository struct {
	col *mongo.Collection
}

// ReplaceChunks swaps the document's whole chunk set.
func (r *ChunkRepository) ReplaceChunks(ctx context.Context, documentID string, chunks []models.Chunk) error {
	if err := r.DeleteForDocument(ctx, documentID); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}
	docs := make([]interface{}, len(chunks))
	for i := range chunks {
		docs[i] = chunks[i]
	}
	if _, err := r.col.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to insert chunks: %w", err)
	}
	return nil
}

func (r *ChunkRepository) DeleteForDocument(ctx context.Context, documentID string) error {
	if _, err := r.col.DeleteMany(ctx, bson.M{"document_id": documentID}); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	return nil
}

// ForEachChunk streams chunks in index order without their embeddings.
func (r *ChunkRepository) ForEachChunk(ctx context.Context, documentID string, fn func(models.Chunk) bool) error {
	opts := options.Find().
		SetSort(bson.D{{Key: "chunk_index", Value: 1}}).
		SetProjection(bson.M{"embedding": 0})
	cur, err := r.col.Find(ctx, bson.M{"document_id": documentID}, opts)
	if err != nil {
		return err
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var c models.Chunk
		if err := cur.Decode(&c); err != nil {
			return err
		}
		if !fn(c) {
			return nil
		}
	}
	return cur.Err()
}

func (r *ChunkRepository) ListChunks(ctx context.Context, documentID string) ([]models.Chunk, error) {
	var out []models.Chunk
	err := r.ForEachChunk(ctx, documentID, func(c models.Chunk) bool {
		out = append(out, c)
		return true
	})
	return out, err
}

func (r *ChunkRepository) Count(ctx context.Context, documentID string) (int64, error) {
	return r.col.CountDocuments(ctx, bson.M{"document_id": documentID})
}

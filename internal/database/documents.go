package database

import (
	"context"
	"fmt"
	"time"

	"study-assistant-platform/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type DocumentRepository struct {
	col *mongo.Collection
}

func (r *DocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	_, err := r.col.InsertOne(ctx, doc)
	return err
}

func (r *DocumentRepository) Get(ctx context.Context, id string) (*models.Document, error) {
	return decodeOne[models.Document](r.col.FindOne(ctx, bson.M{"_id": id}))
}

func (r *DocumentRepository) GetForUser(ctx context.Context, id, userID string) (*models.Document, error) {
	return decodeOne[models.Document](r.col.FindOne(ctx, bson.M{"_id": id, "user_id": userID}))
}

// ListForUser returns the user's documents, newest first. An empty status matches all.
func (r *DocumentRepository) ListForUser(ctx context.Context, userID string, status models.DocumentStatus) ([]models.Document, error) {
	filter := bson.M{"user_id": userID}
	if status != "" {
		filter["status"] = status
	}
	opts := options.Find().SetSort(bson.D{{Key: "uploaded_at", Value: -1}})
	cur, err := r.col.Find(ctx, filter, opts)
	return decodeAll[models.Document](ctx, cur, err)
}

func (r *DocumentRepository) ListByStatus(ctx context.Context, status models.DocumentStatus) ([]models.Document, error) {
	cur, err := r.col.Find(ctx, bson.M{"status": status}, options.Find().SetSort(bson.D{{Key: "uploaded_at", Value: 1}}))
	return decodeAll[models.Document](ctx, cur, err)
}

// ListStaleUnprocessed returns documents left unprocessed since before cutoff.
func (r *DocumentRepository) ListStaleUnprocessed(ctx context.Context, cutoff time.Time) ([]models.Document, error) {
	filter := bson.M{
		"status":     models.StatusUnprocessed,
		"updated_at": bson.M{"$lt": cutoff},
	}
	cur, err := r.col.Find(ctx, filter, options.Find().SetLimit(100))
	return decodeAll[models.Document](ctx, cur, err)
}

func (r *DocumentRepository) CountForUser(ctx context.Context, userID string) (int64, error) {
	return r.col.CountDocuments(ctx, bson.M{"user_id": userID})
}

// FindByHash returns nil without error when the user has no file with that hash.
func (r *DocumentRepository) FindByHash(ctx context.Context, userID, hash string) (*models.Document, error) {
	doc, err := decodeOne[models.Document](r.col.FindOne(ctx, bson.M{"user_id": userID, "file_hash": hash}))
	if err == ErrNotFound {
		return nil, nil
	}
	return doc, err
}

// ResetForReprocess bumps the generation and returns the updated document.
// Jobs scheduled for earlier generations can no longer change its status.
func (r *DocumentRepository) ResetForReprocess(ctx context.Context, id, userID string) (*models.Document, error) {
	update := bson.M{
		"$inc":   bson.M{"generation": 1},
		"$set":   bson.M{"status": models.StatusUnprocessed, "chunk_count": 0, "updated_at": time.Now().UTC()},
		"$unset": bson.M{"processed_at": "", "error_message": ""},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	return decodeOne[models.Document](r.col.FindOneAndUpdate(ctx, bson.M{"_id": id, "user_id": userID}, update, opts))
}

// Touch refreshes updated_at so the stale sweeper does not pick the document up again immediately.
func (r *DocumentRepository) Touch(ctx context.Context, id string, generation int64) error {
	_, err := r.col.UpdateOne(ctx,
		bson.M{"_id": id, "generation": generation, "status": models.StatusUnprocessed},
		bson.M{"$set": bson.M{"updated_at": time.Now().UTC()}})
	return err
}

// MarkProcessed reports false when the generation has moved on.
func (r *DocumentRepository) MarkProcessed(ctx context.Context, id string, generation int64, pageCount, chunkCount int) (bool, error) {
	now := time.Now().UTC()
	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": id, "generation": generation},
		bson.M{
			"$set": bson.M{
				"status":       models.StatusProcessed,
				"page_count":   pageCount,
				"chunk_count":  chunkCount,
				"processed_at": now,
				"updated_at":   now,
			},
			"$unset": bson.M{"error_message": ""},
		})
	if err != nil {
		return false, fmt.Errorf("failed to mark document processed: %w", err)
	}
	return res.MatchedCount == 1, nil
}

// MarkFailed reports false when the generation has moved on.
func (r *DocumentRepository) MarkFailed(ctx context.Context, id string, generation int64, reason string) (bool, error) {
	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": id, "generation": generation},
		bson.M{
			"$set": bson.M{
				"status":        models.StatusFailed,
				"chunk_count":   0,
				"error_message": reason,
				"updated_at":    time.Now().UTC(),
			},
			"$unset": bson.M{"processed_at": ""},
		})
	if err != nil {
		return false, fmt.Errorf("failed to mark document failed: %w", err)
	}
	return res.MatchedCount == 1, nil
}

func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	_, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

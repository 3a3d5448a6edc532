package database

import (
	"context"
	"fmt"

	"study-assistant-platform/internal/progress"
	"study-assistant-platform/models"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type ProgressRepository struct {
	progress *mongo.Collection
	sessions *mongo.Collection
}

// ApplyAttempt increments the totals with an upsert, then derives the average
// from the post-increment totals.
func (r *ProgressRepository) ApplyAttempt(ctx context.Context, d progress.ProgressDelta) (*models.UserProgress, error) {
	filter := bson.M{"user_id": d.UserID, "document_id": d.DocumentID}
	update := bson.M{
		"$inc": bson.M{
			"total_quizzes_taken":       1,
			"total_questions_attempted": d.Questions,
			"total_correct_answers":     d.Correct,
		},
		"$set": bson.M{
			"strengths":     d.Strengths,
			"weaknesses":    d.Weaknesses,
			"last_activity": d.At,
		},
		"$setOnInsert": bson.M{"_id": uuid.NewString()},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	p, err := decodeOne[models.UserProgress](r.progress.FindOneAndUpdate(ctx, filter, update, opts))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert progress: %w", err)
	}

	p.AverageScore = models.Percentage(p.TotalCorrectAnswers, p.TotalQuestionsAttempted)
	if _, err := r.progress.UpdateOne(ctx, bson.M{"_id": p.ID}, bson.M{"$set": bson.M{"average_score": p.AverageScore}}); err != nil {
		return nil, fmt.Errorf("failed to update average score: %w", err)
	}
	return p, nil
}

// RecordSession adds the attempt to the open session, creating one if needed,
// and stamps its end time.
func (r *ProgressRepository) RecordSession(ctx context.Context, d progress.SessionDelta) error {
	filter := bson.M{"user_id": d.UserID, "document_id": d.DocumentID, "end_time": nil}
	update := bson.M{
		"$inc": bson.M{
			"questions_attempted": d.Questions,
			"correct_answers":     d.Correct,
			"time_spent":          d.TimeSpent,
		},
		"$set": bson.M{"end_time": d.At},
		"$setOnInsert": bson.M{
			"_id":          uuid.NewString(),
			"session_type": models.SessionTypeQuiz,
			"quiz_kind":    d.QuizKind,
			"start_time":   d.At,
		},
	}
	if _, err := r.sessions.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true)); err != nil {
		return fmt.Errorf("failed to record study session: %w", err)
	}
	return nil
}

func (r *ProgressRepository) ListProgress(ctx context.Context, userID string) ([]models.UserProgress, error) {
	cur, err := r.progress.Find(ctx, bson.M{"user_id": userID}, options.Find().SetSort(bson.D{{Key: "last_activity", Value: -1}}))
	return decodeAll[models.UserProgress](ctx, cur, err)
}

func (r *ProgressRepository) ListSessions(ctx context.Context, userID string, limit int64) ([]models.StudySession, error) {
	opts := options.Find().SetSort(bson.D{{Key: "start_time", Value: -1}}).SetLimit(limit)
	cur, err := r.sessions.Find(ctx, bson.M{"user_id": userID}, opts)
	return decodeAll[models.StudySession](ctx, cur, err)
}

func (r *ProgressRepository) DeleteForDocument(ctx context.Context, documentID string) error {
	if _, err := r.progress.DeleteMany(ctx, bson.M{"document_id": documentID}); err != nil {
		return fmt.Errorf("failed to delete progress: %w", err)
	}
	if _, err := r.sessions.DeleteMany(ctx, bson.M{"document_id": documentID}); err != nil {
		return fmt.Errorf("failed to delete sessions: %w", err)
	}
	return nil
}

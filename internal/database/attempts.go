package database

import (
	"context"
	"errors"
	"fmt"
	"math"

	"study-assistant-platform/internal/quiz"
	"study-assistant-platform/models"
	"study-assistant-platform/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type AttemptRepository struct {
	attempts *mongo.Collection
	answers  *mongo.Collection
	quizzes  *QuizRepository
}

func (r *AttemptRepository) Create(ctx context.Context, attempt *models.QuizAttempt) error {
	_, err := r.attempts.InsertOne(ctx, attempt)
	return err
}

func (r *AttemptRepository) Get(ctx context.Context, id, userID string) (*models.QuizAttempt, error) {
	return decodeOne[models.QuizAttempt](r.attempts.FindOne(ctx, bson.M{"_id": id, "user_id": userID}))
}

func (r *AttemptRepository) ListForUser(ctx context.Context, userID string) ([]models.QuizAttempt, error) {
	cur, err := r.attempts.Find(ctx, bson.M{"user_id": userID}, options.Find().SetSort(bson.D{{Key: "started_at", Value: -1}}))
	return decodeAll[models.QuizAttempt](ctx, cur, err)
}

func (r *AttemptRepository) ListQuestions(ctx context.Context, quizID string) ([]models.Question, error) {
	return r.quizzes.ListQuestions(ctx, quizID)
}

func (r *AttemptRepository) Answers(ctx context.Context, attemptID string) ([]models.Answer, error) {
	cur, err := r.answers.Find(ctx, bson.M{"attempt_id": attemptID})
	return decodeAll[models.Answer](ctx, cur, err)
}

// CompleteAttempt claims the attempt by flipping it from in_progress to
// completed, then stores its answers. Only the first submission matches the
// status filter. When the answers cannot be stored the claim is rolled back,
// so the attempt is never left completed without its answers.
func (r *AttemptRepository) CompleteAttempt(ctx context.Context, attempt *models.QuizAttempt, answers []models.Answer) error {
	// Claim the attempt; a concurrent or repeated submission matches nothing
	res, err := r.attempts.UpdateOne(ctx,
		bson.M{"_id": attempt.ID, "status": models.AttemptInProgress},
		bson.M{"$set": bson.M{
			"status":            models.AttemptCompleted,
			"score":             attempt.Score,
			"total_questions":   attempt.TotalQuestions,
			"time_taken":        attempt.TimeTaken,
			"submitted_answers": attempt.SubmittedAnswers,
			"completed_at":      attempt.CompletedAt,
		}})
	if err != nil {
		return fmt.Errorf("failed to update attempt: %w", err)
	}
	if res.MatchedCount == 0 {
		return quiz.ErrAttemptCompleted
	}

	if len(answers) == 0 {
		return nil
	}

	// The claim is ours, so answers left behind by an earlier failed claim can go
	if _, err := r.answers.DeleteMany(ctx, bson.M{"attempt_id": attempt.ID}); err != nil {
		return errors.Join(fmt.Errorf("failed to clear answers: %w", err), r.releaseClaim(ctx, attempt.ID))
	}

	docs := make([]interface{}, len(answers))
	for i := range answers {
		docs[i] = answers[i]
	}
	if _, err := r.answers.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false)); err != nil {
		return errors.Join(fmt.Errorf("failed to insert answers: %w", err), r.releaseClaim(ctx, attempt.ID))
	}
	return nil
}

// releaseClaim puts a completed attempt back in progress and drops any
// answers stored for it. It runs detached from ctx, which may be the reason
// the insert failed.
func (r *AttemptRepository) releaseClaim(ctx context.Context, attemptID string) error {
	ctx, cancel := utils.Detached(ctx, utils.DefaultTimeout)
	defer cancel()

	if _, err := r.answers.DeleteMany(ctx, bson.M{"attempt_id": attemptID}); err != nil {
		return fmt.Errorf("failed to remove partial answers: %w", err)
	}
	_, err := r.attempts.UpdateOne(ctx,
		bson.M{"_id": attemptID, "status": models.AttemptCompleted},
		bson.M{
			"$set": bson.M{
				"status":            models.AttemptInProgress,
				"score":             0,
				"time_taken":        0,
				"submitted_answers": nil,
			},
			"$unset": bson.M{"completed_at": ""},
		})
	if err != nil {
		return fmt.Errorf("failed to reopen attempt: %w", err)
	}
	return nil
}

// Stats summarises the user's completed attempts.
func (r *AttemptRepository) Stats(ctx context.Context, userID string) (*models.AttemptStats, error) {
	match := bson.M{"user_id": userID, "status": models.AttemptCompleted}

	cur, err := r.attempts.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{
			"_id":       "$quiz_kind",
			"count":     bson.M{"$sum": 1},
			"avg_score": bson.M{"$avg": "$score"},
		}}},
		{{Key: "$sort", Value: bson.M{"_id": 1}}},
	})
	breakdown, err := decodeAll[models.KindBreakdown](ctx, cur, err)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate attempts: %w", err)
	}

	stats := &models.AttemptStats{KindBreakdown: breakdown}
	var scoreSum float64
	for i := range breakdown {
		stats.TotalAttempts += breakdown[i].Count
		scoreSum += breakdown[i].AverageScore * float64(breakdown[i].Count)
		breakdown[i].AverageScore = math.Round(breakdown[i].AverageScore*100) / 100
	}
	if stats.TotalAttempts > 0 {
		stats.AverageScore = math.Round(scoreSum/float64(stats.TotalAttempts)*100) / 100
	}

	attemptIDs, err := r.attempts.Distinct(ctx, "_id", match)
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}
	if len(attemptIDs) > 0 {
		n, err := r.answers.CountDocuments(ctx, bson.M{"attempt_id": bson.M{"$in": attemptIDs}})
		if err != nil {
			return nil, fmt.Errorf("failed to count answers: %w", err)
		}
		stats.TotalQuestionsAnswered = n
	}
	return stats, nil
}

// DeleteForDocument removes the document's attempts and their answers.
func (r *AttemptRepository) DeleteForDocument(ctx context.Context, documentID string) error {
	attemptIDs, err := r.attempts.Distinct(ctx, "_id", bson.M{"document_id": documentID})
	if err != nil {
		return fmt.Errorf("failed to list attempts: %w", err)
	}
	if len(attemptIDs) > 0 {
		if _, err := r.answers.DeleteMany(ctx, bson.M{"attempt_id": bson.M{"$in": attemptIDs}}); err != nil {
			return fmt.Errorf("failed to delete answers: %w", err)
		}
	}
	if _, err := r.attempts.DeleteMany(ctx, bson.M{"document_id": documentID}); err != nil {
		return fmt.Errorf("failed to delete attempts: %w", err)
	}
	return nil
}

package database

import (
	"context"
	"fmt"

	"study-assistant-platform/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type QuizRepository struct {
	quizzes   *mongo.Collection
	questions *mongo.Collection
}

// CreateQuiz inserts the quiz then its questions, removing the quiz again if
// the questions cannot be stored.
func (r *QuizRepository) CreateQuiz(ctx context.Context, quiz *models.Quiz, questions []models.Question) error {
	if _, err := r.quizzes.InsertOne(ctx, quiz); err != nil {
		return fmt.Errorf("failed to insert quiz: %w", err)
	}
	if len(questions) == 0 {
		return nil
	}
	docs := make([]interface{}, len(questions))
	for i := range questions {
		docs[i] = questions[i]
	}
	if _, err := r.questions.InsertMany(ctx, docs); err != nil {
		_, _ = r.questions.DeleteMany(ctx, bson.M{"quiz_id": quiz.ID})
		_, _ = r.quizzes.DeleteOne(ctx, bson.M{"_id": quiz.ID})
		return fmt.Errorf("failed to insert questions: %w", err)
	}
	return nil
}

func (r *QuizRepository) GetQuiz(ctx context.Context, id, userID string) (*models.Quiz, error) {
	return decodeOne[models.Quiz](r.quizzes.FindOne(ctx, bson.M{"_id": id, "user_id": userID}))
}

// ListQuizzes returns the user's quizzes, newest first, optionally for one document.
func (r *QuizRepository) ListQuizzes(ctx context.Context, userID, documentID string) ([]models.Quiz, error) {
	filter := bson.M{"user_id": userID}
	if documentID != "" {
		filter["document_id"] = documentID
	}
	cur, err := r.quizzes.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	return decodeAll[models.Quiz](ctx, cur, err)
}

func (r *QuizRepository) ListQuestions(ctx context.Context, quizID string) ([]models.Question, error) {
	cur, err := r.questions.Find(ctx, bson.M{"quiz_id": quizID}, options.Find().SetSort(bson.D{{Key: "position", Value: 1}}))
	return decodeAll[models.Question](ctx, cur, err)
}

// DeleteForDocument removes every quiz of the document with its questions.
func (r *QuizRepository) DeleteForDocument(ctx context.Context, documentID string) error {
	quizIDs, err := r.quizzes.Distinct(ctx, "_id", bson.M{"document_id": documentID})
	if err != nil {
		return fmt.Errorf("failed to list quizzes: %w", err)
	}
	if len(quizIDs) > 0 {
		if _, err := r.questions.DeleteMany(ctx, bson.M{"quiz_id": bson.M{"$in": quizIDs}}); err != nil {
			return fmt.Errorf("failed to delete questions: %w", err)
		}
	}
	if _, err := r.quizzes.DeleteMany(ctx, bson.M{"document_id": documentID}); err != nil {
		return fmt.Errorf("failed to delete quizzes: %w", err)
	}
	return nil
}

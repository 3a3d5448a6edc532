// Package database holds the MongoDB repositories.
package database

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollDocuments = "documents"
	CollChunks    = "chunks"
	CollQuizzes   = "quizzes"
	CollQuestions = "questions"
	CollAttempts  = "quiz_attempts"
	CollAnswers   = "answers"
	CollProgress  = "user_progress"
	CollSessions  = "study_sessions"
)

var ErrNotFound = errors.New("not found")

// Store groups the repositories over one database.
type Store struct {
	DB        *mongo.Database
	Documents *DocumentRepository
	Chunks    *ChunkRepository
	Quizzes   *QuizRepository
	Attempts  *AttemptRepository
	Progress  *ProgressRepository
}

func NewStore(db *mongo.Database) *Store {
	quizzes := &QuizRepository{
		quizzes:   db.Collection(CollQuizzes),
		questions: db.Collection(CollQuestions),
	}
	return &Store{
		DB:        db,
		Documents: &DocumentRepository{col: db.Collection(CollDocuments)},
		Chunks:    &ChunkRepository{col: db.Collection(CollChunks)},
		Quizzes:   quizzes,
		Attempts: &AttemptRepository{
			attempts: db.Collection(CollAttempts),
			answers:  db.Collection(CollAnswers),
			quizzes:  quizzes,
		},
		Progress: &ProgressRepository{
			progress: db.Collection(CollProgress),
			sessions: db.Collection(CollSessions),
		},
	}
}

// EnsureIndexes creates every index the repositories rely on, including the
// unique (document_id, chunk_index) and (attempt_id, question_id) pairs.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		CollDocuments: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "uploaded_at", Value: -1}}},
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "file_hash", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "updated_at", Value: 1}}},
		},
		CollChunks: {
			{
				Keys:    bson.D{{Key: "document_id", Value: 1}, {Key: "chunk_index", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		CollQuizzes: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "document_id", Value: 1}}},
		},
		CollQuestions: {
			{Keys: bson.D{{Key: "quiz_id", Value: 1}, {Key: "position", Value: 1}}},
		},
		CollAttempts: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "started_at", Value: -1}}},
			{Keys: bson.D{{Key: "document_id", Value: 1}}},
		},
		CollAnswers: {
			{
				Keys:    bson.D{{Key: "attempt_id", Value: 1}, {Key: "question_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		CollProgress: {
			{
				Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "document_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		CollSessions: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "document_id", Value: 1}, {Key: "end_time", Value: 1}}},
		},
	}

	for name, idx := range indexes {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, idx); err != nil {
			return fmt.Errorf("failed to create %s indexes: %w", name, err)
		}
	}
	return nil
}

func decodeOne[T any](res *mongo.SingleResult) (*T, error) {
	var out T
	if err := res.Decode(&out); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &out, nil
}

func decodeAll[T any](ctx context.Context, cur *mongo.Cursor, err error) ([]T, error) {
	if err != nil {
		return nil, err
	}
	out := []T{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

package models

import "time"

// UserProgress aggregates a user's quiz results for one document.
type UserProgress struct {
	ID                      string             `bson:"_id" json:"id"`
	UserID                  string             `bson:"user_id" json:"user_id"`
	DocumentID              string             `bson:"document_id" json:"document_id"`
	TotalQuizzesTaken       int                `bson:"total_quizzes_taken" json:"total_quizzes_taken"`
	TotalQuestionsAttempted int                `bson:"total_questions_attempted" json:"total_questions_attempted"`
	TotalCorrectAnswers     int                `bson:"total_correct_answers" json:"total_correct_answers"`
	AverageScore            float64            `bson:"average_score" json:"average_score"`
	Strengths               map[string]float64 `bson:"strengths" json:"strengths"`
	Weaknesses              map[string]float64 `bson:"weaknesses" json:"weaknesses"`
	LastActivity            time.Time          `bson:"last_activity" json:"last_activity"`
}

// Study session types
const (
	SessionTypeReading = "reading"
	SessionTypeQuiz    = "quiz"
	SessionTypeReview  = "review"
)

// StudySession accumulates activity on a document until it is closed.
type StudySession struct {
	ID                 string     `bson:"_id" json:"id"`
	UserID             string     `bson:"user_id" json:"user_id"`
	DocumentID         string     `bson:"document_id" json:"document_id"`
	SessionType        string     `bson:"session_type" json:"session_type"`
	QuizKind           QuizKind   `bson:"quiz_kind,omitempty" json:"quiz_type,omitempty"`
	QuestionsAttempted int        `bson:"questions_attempted" json:"questions_attempted"`
	CorrectAnswers     int        `bson:"correct_answers" json:"correct_answers"`
	TimeSpent          int        `bson:"time_spent" json:"time_spent"` // seconds
	StartTime          time.Time  `bson:"start_time" json:"start_time"`
	EndTime            *time.Time `bson:"end_time,omitempty" json:"end_time,omitempty"`
}

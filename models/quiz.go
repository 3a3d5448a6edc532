package models

import (
	"math"
	"strings"
	"time"
)

// QuizKind is the question format of a quiz.
type QuizKind string

const (
	QuizKindMCQ QuizKind = "mcq"
	QuizKindSAQ QuizKind = "saq"
	QuizKindLAQ QuizKind = "laq"
)

// Valid reports whether k is a known quiz kind.
func (k QuizKind) Valid() bool {
	switch k {
	case QuizKindMCQ, QuizKindSAQ, QuizKindLAQ:
		return true
	}
	return false
}

// Difficulty of a generated quiz.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// Title returns the capitalised difficulty name.
func (d Difficulty) Title() string {
	if d == "" {
		return ""
	}
	s := string(d)
	return strings.ToUpper(s[:1]) + s[1:]
}

// DefaultTopic is used when the model does not label a question.
const DefaultTopic = "General"

// Quiz is immutable once created; regeneration creates a new quiz.
type Quiz struct {
	ID             string     `bson:"_id" json:"id"`
	DocumentID     string     `bson:"document_id" json:"document_id"`
	DocumentTitle  string     `bson:"document_title" json:"document_title"`
	UserID         string     `bson:"user_id" json:"user_id"`
	Kind           QuizKind   `bson:"kind" json:"quiz_type"`
	Title          string     `bson:"title" json:"title"`
	Difficulty     Difficulty `bson:"difficulty" json:"difficulty"`
	RequestedCount int        `bson:"requested_count" json:"requested_count"`
	QuestionsCount int        `bson:"questions_count" json:"questions_count"`
	CreatedAt      time.Time  `bson:"created_at" json:"created_at"`
}

// Question belongs to a quiz. MCQ questions use the option fields and
// CorrectAnswer (a lower-case letter); SAQ/LAQ questions use ExpectedAnswer.
type Question struct {
	ID             string   `bson:"_id" json:"id"`
	QuizID         string   `bson:"quiz_id" json:"quiz_id"`
	Position       int      `bson:"position" json:"position"`
	Kind           QuizKind `bson:"kind" json:"question_type"`
	Text           string   `bson:"text" json:"question_text"`
	OptionA        string   `bson:"option_a,omitempty" json:"option_a,omitempty"`
	OptionB        string   `bson:"option_b,omitempty" json:"option_b,omitempty"`
	OptionC        string   `bson:"option_c,omitempty" json:"option_c,omitempty"`
	OptionD        string   `bson:"option_d,omitempty" json:"option_d,omitempty"`
	CorrectAnswer  string   `bson:"correct_answer,omitempty" json:"correct_answer,omitempty"`
	ExpectedAnswer string   `bson:"expected_answer,omitempty" json:"expected_answer,omitempty"`
	Explanation    string   `bson:"explanation" json:"explanation"`
	Topic          string   `bson:"topic" json:"topic"`
}

// QuizWithQuestions is the API view of a quiz.
type QuizWithQuestions struct {
	Quiz
	Questions []Question `json:"questions"`
}

// Attempt states
const (
	AttemptInProgress = "in_progress"
	AttemptCompleted  = "completed"
)

// SubmittedAnswer is one item of a submission payload, stored verbatim on the attempt.
type SubmittedAnswer struct {
	QuestionID string `bson:"question_id" json:"question_id"`
	Answer     string `bson:"answer" json:"answer"`
	TimeTaken  int    `bson:"time_taken" json:"time_taken"`
}

// QuizAttempt is one graded pass of a user through a quiz.
type QuizAttempt struct {
	ID               string            `bson:"_id" json:"id"`
	UserID           string            `bson:"user_id" json:"user_id"`
	QuizID           string            `bson:"quiz_id" json:"quiz_id"`
	DocumentID       string            `bson:"document_id" json:"document_id"`
	QuizKind         QuizKind          `bson:"quiz_kind" json:"quiz_type"`
	Status           string            `bson:"status" json:"status"`
	Score            int               `bson:"score" json:"score"`
	TotalQuestions   int               `bson:"total_questions" json:"total_questions"`
	TimeTaken        int               `bson:"time_taken" json:"time_taken"` // seconds
	SubmittedAnswers []SubmittedAnswer `bson:"submitted_answers" json:"submitted_answers"`
	StartedAt        time.Time         `bson:"started_at" json:"started_at"`
	CompletedAt      *time.Time        `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
}

// Percentage returns the score as a percentage rounded to two decimals.
func (a *QuizAttempt) Percentage() float64 {
	return Percentage(a.Score, a.TotalQuestions)
}

// Answer is one graded response within an attempt, unique per (attempt, question).
type Answer struct {
	ID         string `bson:"_id" json:"id"`
	AttemptID  string `bson:"attempt_id" json:"attempt_id"`
	QuestionID string `bson:"question_id" json:"question_id"`
	UserAnswer string `bson:"user_answer" json:"user_answer"`
	IsCorrect  bool   `bson:"is_correct" json:"is_correct"`
	Feedback   string `bson:"feedback" json:"feedback"`
	TimeTaken  int    `bson:"time_taken" json:"time_taken"`
}

// AttemptStats summarises a user's attempts.
type AttemptStats struct {
	TotalAttempts          int64           `json:"total_attempts"`
	AverageScore           float64         `json:"average_score"`
	TotalQuestionsAnswered int64           `json:"total_questions_answered"`
	KindBreakdown          []KindBreakdown `json:"quiz_type_breakdown"`
}

type KindBreakdown struct {
	Kind         QuizKind `bson:"_id" json:"quiz_type"`
	Count        int64    `bson:"count" json:"count"`
	AverageScore float64  `bson:"avg_score" json:"avg_score"`
}

// Percentage computes correct/total*100 rounded to two decimals; 0 when total is 0.
func Percentage(correct, total int) float64 {
	if total <= 0 {
		return 0
	}
	p := float64(correct) / float64(total) * 100
	return math.Round(p*100) / 100
}

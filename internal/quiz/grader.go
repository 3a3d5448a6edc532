package quiz

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"study-assistant-platform/internal/logger"
	"study-assistant-platform/internal/progress"
	"study-assistant-platform/internal/telemetry"
	"study-assistant-platform/models"

	"github.com/google/uuid"
)

// AttemptStore is the persistence the grader needs.
type AttemptStore interface {
	ListQuestions(ctx context.Context, quizID string) ([]models.Question, error)
	// CompleteAttempt stores the graded attempt and its answers. It returns
	// ErrAttemptCompleted when the attempt is no longer in progress.
	CompleteAttempt(ctx context.Context, attempt *models.QuizAttempt, answers []models.Answer) error
}

// AnswerEvaluator grades a single answer.
type AnswerEvaluator interface {
	Evaluate(ctx context.Context, q models.Question, submitted string) Evaluation
}

type Submission struct {
	Answers   []models.SubmittedAnswer `json:"answers"`
	TimeTaken int                      `json:"time_taken"`
}

type GradeResult struct {
	AttemptID      string          `json:"attempt_id"`
	Score          int             `json:"score"`
	TotalQuestions int             `json:"total_questions"`
	Percentage     float64         `json:"percentage"`
	Answers        []models.Answer `json:"answers"`
}

type Grader struct {
	store     AttemptStore
	evaluator AnswerEvaluator
	recorder  progress.Recorder
	logger    *slog.Logger
	metrics   *telemetry.Metrics
	now       func() time.Time
}

func NewGrader(store AttemptStore, evaluator AnswerEvaluator, recorder progress.Recorder, metrics *telemetry.Metrics) *Grader {
	return &Grader{
		store:     store,
		evaluator: evaluator,
		recorder:  recorder,
		logger:    logger.Get(),
		metrics:   metrics,
		now:       time.Now,
	}
}

// Submit grades every submitted answer that belongs to the attempt's quiz.
// Unknown and repeated question ids are skipped. The progress recorder is
// called once after the attempt is stored; its failure is logged only.
func (g *Grader) Submit(ctx context.Context, attempt *models.QuizAttempt, sub Submission) (*GradeResult, error) {
	if attempt.Status == models.AttemptCompleted {
		return nil, ErrAttemptCompleted
	}

	// Only questions of the attempt's own quiz can be answered
	questions, err := g.store.ListQuestions(ctx, attempt.QuizID)
	if err != nil {
		return nil, fmt.Errorf("failed to load questions: %w", err)
	}
	byID := make(map[string]models.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	var (
		score   int
		answers []models.Answer
		topics  []progress.TopicResult
		seen    = make(map[string]bool, len(sub.Answers))
	)
	// Evaluate answers in submission order, first answer per question wins
	for _, item := range sub.Answers {
		q, ok := byID[item.QuestionID]
		if !ok || seen[item.QuestionID] {
			g.logger.Debug("Skipping submitted answer", "attempt_id", attempt.ID, "question_id", item.QuestionID, "known", ok)
			continue
		}
		seen[item.QuestionID] = true

		// Evaluation never fails; an LLM outage grades the answer incorrect
		eval := g.evaluator.Evaluate(ctx, q, item.Answer)
		if eval.IsCorrect {
			score++
		}
		g.metrics.RecordAnswerGraded(string(q.Kind), eval.IsCorrect)

		answers = append(answers, models.Answer{
			ID:         uuid.NewString(),
			AttemptID:  attempt.ID,
			QuestionID: q.ID,
			UserAnswer: item.Answer,
			IsCorrect:  eval.IsCorrect,
			Feedback:   eval.Feedback,
			TimeTaken:  item.TimeTaken,
		})
		topics = append(topics, progress.TopicResult{Topic: q.Topic, Correct: eval.IsCorrect})
	}

	// Total is the larger of the quiz count and the questions actually stored
	completedAt := g.now().UTC()
	attempt.Score = score
	attempt.TotalQuestions = max(attempt.TotalQuestions, len(questions))
	attempt.TimeTaken = sub.TimeTaken
	attempt.SubmittedAnswers = sub.Answers
	attempt.Status = models.AttemptCompleted
	attempt.CompletedAt = &completedAt

	// Answers and attempt are stored together; a double submission stops here
	if err := g.store.CompleteAttempt(ctx, attempt, answers); err != nil {
		return nil, fmt.Errorf("failed to save attempt: %w", err)
	}

	// Notify progress exactly once, after the attempt is durable
	outcome := progress.AttemptOutcome{
		UserID:         attempt.UserID,
		DocumentID:     attempt.DocumentID,
		QuizID:         attempt.QuizID,
		AttemptID:      attempt.ID,
		QuizKind:       attempt.QuizKind,
		TotalQuestions: attempt.TotalQuestions,
		CorrectCount:   score,
		Topics:         topics,
		TimeTaken:      sub.TimeTaken,
		CompletedAt:    completedAt,
	}
	if err := g.recorder.OnAttemptGraded(ctx, outcome); err != nil {
		g.logger.Error("Failed to record progress", "attempt_id", attempt.ID, "error", err)
	}

	g.logger.Info("Attempt graded",
		"attempt_id", attempt.ID, "quiz_id", attempt.QuizID,
		"score", score, "total_questions", attempt.TotalQuestions)

	return &GradeResult{
		AttemptID:      attempt.ID,
		Score:          score,
		TotalQuestions: attempt.TotalQuestions,
		Percentage:     models.Percentage(score, attempt.TotalQuestions),
		Answers:        answers,
	}, nil
}

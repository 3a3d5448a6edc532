package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"study-assistant-platform/internal/logger"
	"study-assistant-platform/internal/progress"
	"study-assistant-platform/internal/quiz"
	"study-assistant-platform/models"

	"github.com/google/uuid"
)

type DocumentLookup interface {
	GetForUser(ctx context.Context, id, userID string) (*models.Document, error)
}

type QuizRepository interface {
	GetQuiz(ctx context.Context, id, userID string) (*models.Quiz, error)
	ListQuizzes(ctx context.Context, userID, documentID string) ([]models.Quiz, error)
	ListQuestions(ctx context.Context, quizID string) ([]models.Question, error)
}

type AttemptRepository interface {
	Create(ctx context.Context, attempt *models.QuizAttempt) error
	Get(ctx context.Context, id, userID string) (*models.QuizAttempt, error)
	ListForUser(ctx context.Context, userID string) ([]models.QuizAttempt, error)
	Answers(ctx context.Context, attemptID string) ([]models.Answer, error)
	Stats(ctx context.Context, userID string) (*models.AttemptStats, error)
}

type QuizGenerator interface {
	Generate(ctx context.Context, doc *models.Document, kind models.QuizKind, count int, difficulty models.Difficulty) (*models.Quiz, []models.Question, error)
}

type AttemptGrader interface {
	Submit(ctx context.Context, attempt *models.QuizAttempt, sub quiz.Submission) (*quiz.GradeResult, error)
}

type ProgressReader interface {
	Summary(ctx context.Context, userID string) (*progress.Summary, error)
}

type QuizService struct {
	docs      DocumentLookup
	quizzes   QuizRepository
	attempts  AttemptRepository
	generator QuizGenerator
	grader    AttemptGrader
	progress  ProgressReader
	logger    *slog.Logger
}

func NewQuizService(docs DocumentLookup, quizzes QuizRepository, attempts AttemptRepository, generator QuizGenerator, grader AttemptGrader, tracker ProgressReader) *QuizService {
	return &QuizService{
		docs:      docs,
		quizzes:   quizzes,
		attempts:  attempts,
		generator: generator,
		grader:    grader,
		progress:  tracker,
		logger:    logger.Get(),
	}
}

type GenerateQuizRequest struct {
	UserID         string            `json:"-"`
	DocumentID     string            `json:"document_id" binding:"required"`
	Kind           models.QuizKind   `json:"quiz_type" binding:"required"`
	QuestionsCount int               `json:"questions_count"`
	Difficulty     models.Difficulty `json:"difficulty"`
}

func (s *QuizService) Generate(ctx context.Context, req GenerateQuizRequest) (*models.QuizWithQuestions, error) {
	doc, err := s.docs.GetForUser(ctx, req.DocumentID, req.UserID)
	if err != nil {
		return nil, err
	}
	count := req.QuestionsCount
	if count == 0 {
		count = 5
	}

	q, questions, err := s.generator.Generate(ctx, doc, req.Kind, count, req.Difficulty)
	if err != nil {
		return nil, err
	}
	return &models.QuizWithQuestions{Quiz: *q, Questions: questions}, nil
}

func (s *QuizService) Get(ctx context.Context, id, userID string) (*models.QuizWithQuestions, error) {
	q, err := s.quizzes.GetQuiz(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	questions, err := s.quizzes.ListQuestions(ctx, q.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load questions: %w", err)
	}
	return &models.QuizWithQuestions{Quiz: *q, Questions: questions}, nil
}

func (s *QuizService) List(ctx context.Context, userID, documentID string) ([]models.Quiz, error) {
	return s.quizzes.ListQuizzes(ctx, userID, documentID)
}

// StartAttempt opens an in-progress attempt sized to the quiz.
func (s *QuizService) StartAttempt(ctx context.Context, quizID, userID string) (*models.QuizAttempt, error) {
	q, err := s.quizzes.GetQuiz(ctx, quizID, userID)
	if err != nil {
		return nil, err
	}

	attempt := &models.QuizAttempt{
		ID:               uuid.NewString(),
		UserID:           userID,
		QuizID:           q.ID,
		DocumentID:       q.DocumentID,
		QuizKind:         q.Kind,
		Status:           models.AttemptInProgress,
		TotalQuestions:   q.QuestionsCount,
		SubmittedAnswers: []models.SubmittedAnswer{},
		StartedAt:        time.Now().UTC(),
	}
	if err := s.attempts.Create(ctx, attempt); err != nil {
		return nil, fmt.Errorf("failed to start attempt: %w", err)
	}
	return attempt, nil
}

func (s *QuizService) Submit(ctx context.Context, attemptID, userID string, sub quiz.Submission) (*quiz.GradeResult, error) {
	attempt, err := s.attempts.Get(ctx, attemptID, userID)
	if err != nil {
		return nil, err
	}
	return s.grader.Submit(ctx, attempt, sub)
}

type AttemptDetail struct {
	models.QuizAttempt
	Percentage float64         `json:"percentage"`
	Answers    []models.Answer `json:"answers"`
}

func (s *QuizService) Attempt(ctx context.Context, attemptID, userID string) (*AttemptDetail, error) {
	attempt, err := s.attempts.Get(ctx, attemptID, userID)
	if err != nil {
		return nil, err
	}
	answers, err := s.attempts.Answers(ctx, attempt.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load answers: %w", err)
	}
	return &AttemptDetail{QuizAttempt: *attempt, Percentage: attempt.Percentage(), Answers: answers}, nil
}

func (s *QuizService) Attempts(ctx context.Context, userID string) ([]models.QuizAttempt, error) {
	return s.attempts.ListForUser(ctx, userID)
}

func (s *QuizService) Stats(ctx context.Context, userID string) (*models.AttemptStats, error) {
	return s.attempts.Stats(ctx, userID)
}

func (s *QuizService) Progress(ctx context.Context, userID string) (*progress.Summary, error) {
	return s.progress.Summary(ctx, userID)
}

package quiz

import (
	"context"
	"errors"
	"strings"

	"study-assistant-platform/internal/ai"
	"study-assistant-platform/internal/progress"
	"study-assistant-platform/models"
)

// scriptedLLM returns canned responses in order, or err for every call.
type scriptedLLM struct {
	responses []string
	err       error
	prompts   []string
}

func (l *scriptedLLM) Generate(_ context.Context, prompt string) (string, error) {
	l.prompts = append(l.prompts, prompt)
	if l.err != nil {
		return "", &ai.LLMServiceError{Model: "scripted", Err: l.err}
	}
	if len(l.responses) == 0 {
		return "", &ai.LLMServiceError{Model: "scripted", Err: errors.New("no scripted response")}
	}
	r := l.responses[0]
	l.responses = l.responses[1:]
	return r, nil
}

type memoryChunks struct {
	chunks []models.Chunk
}

func (m *memoryChunks) ForEachChunk(_ context.Context, _ string, fn func(models.Chunk) bool) error {
	for _, c := range m.chunks {
		if !fn(c) {
			return nil
		}
	}
	return nil
}

type memoryQuizzes struct {
	quizzes   []*models.Quiz
	questions map[string][]models.Question
}

func (m *memoryQuizzes) CreateQuiz(_ context.Context, q *models.Quiz, qs []models.Question) error {
	if m.questions == nil {
		m.questions = make(map[string][]models.Question)
	}
	m.quizzes = append(m.quizzes, q)
	m.questions[q.ID] = qs
	return nil
}

type memoryAttempts struct {
	questions []models.Question
	completed map[string]bool
	answers   []models.Answer
}

func (m *memoryAttempts) ListQuestions(_ context.Context, _ string) ([]models.Question, error) {
	return m.questions, nil
}

func (m *memoryAttempts) CompleteAttempt(_ context.Context, a *models.QuizAttempt, answers []models.Answer) error {
	if m.completed == nil {
		m.completed = make(map[string]bool)
	}
	if m.completed[a.ID] {
		return ErrAttemptCompleted
	}
	m.completed[a.ID] = true
	m.answers = append(m.answers, answers...)
	return nil
}

type countingRecorder struct {
	outcomes []progress.AttemptOutcome
	err      error
}

func (r *countingRecorder) OnAttemptGraded(_ context.Context, o progress.AttemptOutcome) error {
	r.outcomes = append(r.outcomes, o)
	return r.err
}

// textJudge marks every text answer containing "right" as correct.
type textJudge struct{}

func (textJudge) Evaluate(_ context.Context, q models.Question, submitted string) Evaluation {
	if q.Kind == models.QuizKindMCQ {
		return evaluateChoice(q, submitted)
	}
	return Evaluation{IsCorrect: strings.Contains(submitted, "right"), Feedback: "judged"}
}

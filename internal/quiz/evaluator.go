package quiz

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"study-assistant-platform/internal/ai"
	"study-assistant-platform/internal/logger"
	"study-assistant-platform/models"
)

const (
	feedbackUnavailable = "Unable to evaluate answer."
	feedbackNoAnswer    = "No answer provided."
)

type Evaluation struct {
	IsCorrect bool
	Feedback  string
	Score     *int // 0-10 from the rubric grader, informational only
}

type Evaluator struct {
	llm    ai.LLM
	logger *slog.Logger
}

func NewEvaluator(llm ai.LLM) *Evaluator {
	return &Evaluator{llm: llm, logger: logger.Get()}
}

// Evaluate always returns a definite result. Failures while grading a text
// answer are reported as an incorrect answer with the failure in the feedback.
func (e *Evaluator) Evaluate(ctx context.Context, q models.Question, submitted string) Evaluation {
	if q.Kind == models.QuizKindMCQ {
		return evaluateChoice(q, submitted)
	}
	return e.evaluateText(ctx, q, submitted)
}

func evaluateChoice(q models.Question, submitted string) Evaluation {
	correct := strings.TrimSpace(q.CorrectAnswer)
	if correct != "" && strings.EqualFold(strings.TrimSpace(submitted), correct) {
		return Evaluation{IsCorrect: true, Feedback: q.Explanation}
	}
	feedback := strings.TrimSpace(fmt.Sprintf("Correct answer is %s. %s", strings.ToUpper(correct), q.Explanation))
	return Evaluation{IsCorrect: false, Feedback: feedback}
}

func (e *Evaluator) evaluateText(ctx context.Context, q models.Question, submitted string) Evaluation {
	if strings.TrimSpace(submitted) == "" {
		return Evaluation{IsCorrect: false, Feedback: feedbackNoAnswer}
	}

	raw, err := e.llm.Generate(ctx, buildEvaluationPrompt(q, submitted))
	if err != nil {
		e.logger.Warn("Text answer evaluation failed", "question_id", q.ID, "error", err)
		return Evaluation{IsCorrect: false, Feedback: "Evaluation failed: " + err.Error()}
	}

	res, err := parseEvaluation(raw)
	if err != nil {
		e.logger.Warn("Unparseable evaluation response", "question_id", q.ID, "error", err)
		return Evaluation{IsCorrect: false, Feedback: "Evaluation failed: " + err.Error()}
	}

	if res.Feedback == "" {
		res.Feedback = feedbackUnavailable
	}
	return Evaluation{IsCorrect: res.IsCorrect, Feedback: res.Feedback, Score: res.Score}
}

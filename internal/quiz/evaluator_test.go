package quiz

import (
	"context"
	"errors"
	"strings"
	"testing"

	"study-assistant-platform/models"
)

func mcq(correct string) models.Question {
	return models.Question{ID: "q", Kind: models.QuizKindMCQ, CorrectAnswer: correct, Explanation: "Because of Newton's second law."}
}

func TestEvaluateChoice(t *testing.T) {
	e := NewEvaluator(&scriptedLLM{})
	ctx := context.Background()

	got := e.Evaluate(ctx, mcq("b"), "B")
	if !got.IsCorrect || got.Feedback != "Because of Newton's second law." {
		t.Fatalf("expected B to match b with explanation feedback, got %+v", got)
	}

	got = e.Evaluate(ctx, mcq("b"), "  b \n")
	if !got.IsCorrect {
		t.Fatalf("expected whitespace to be trimmed")
	}

	got = e.Evaluate(ctx, mcq("c"), "A")
	if got.IsCorrect {
		t.Fatalf("expected A vs c to be incorrect")
	}
	if !strings.HasPrefix(got.Feedback, "Correct answer is C.") {
		t.Fatalf("expected feedback naming C, got %q", got.Feedback)
	}
}

func TestEvaluateTextAnswer(t *testing.T) {
	q := models.Question{ID: "q", Kind: models.QuizKindSAQ, Text: "Define inertia.", ExpectedAnswer: "Resistance to change in motion."}
	llm := &scriptedLLM{responses: []string{"```json\n{\"is_correct\": true, \"feedback\": \"Well explained.\", \"score\": 9}\n```"}}

	got := NewEvaluator(llm).Evaluate(context.Background(), q, "Objects resist changes to their motion.")
	if !got.IsCorrect || got.Feedback != "Well explained." || got.Score == nil || *got.Score != 9 {
		t.Fatalf("unexpected evaluation: %+v", got)
	}
	if len(llm.prompts) != 1 || !strings.Contains(llm.prompts[0], "Resistance to change in motion.") {
		t.Fatalf("expected prompt to include the expected answer")
	}
}

func TestEvaluateTextAnswerDegrades(t *testing.T) {
	q := models.Question{ID: "q", Kind: models.QuizKindLAQ, Text: "Discuss entropy."}
	ctx := context.Background()

	cases := map[string]*scriptedLLM{
		"service error": {err: errors.New("quota exhausted")},
		"unparseable":   {responses: []string{"The answer looks fine to me."}},
	}
	for name, llm := range cases {
		got := NewEvaluator(llm).Evaluate(ctx, q, "Entropy measures disorder.")
		if got.IsCorrect {
			t.Errorf("%s: expected incorrect result", name)
		}
		if !strings.HasPrefix(got.Feedback, "Evaluation failed: ") {
			t.Errorf("%s: expected failure feedback, got %q", name, got.Feedback)
		}
	}

	got := NewEvaluator(&scriptedLLM{responses: []string{`{"is_correct": true}`}}).Evaluate(ctx, q, "x")
	if !got.IsCorrect || got.Feedback != feedbackUnavailable {
		t.Fatalf("expected default feedback, got %+v", got)
	}
}

func TestEvaluateBlankTextAnswerSkipsLLM(t *testing.T) {
	llm := &scriptedLLM{}
	got := NewEvaluator(llm).Evaluate(context.Background(), models.Question{Kind: models.QuizKindSAQ}, "   ")
	if got.IsCorrect || len(llm.prompts) != 0 {
		t.Fatalf("blank answers should be graded incorrect without an LLM call")
	}
}

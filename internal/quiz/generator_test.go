package quiz

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"study-assistant-platform/internal/ai"
	"study-assistant-platform/models"
)

func processedDoc() *models.Document {
	return &models.Document{ID: "doc-1", UserID: "user-1", Title: "Laws of Motion", Status: models.StatusProcessed}
}

func questionsJSON(n int) string {
	items := make([]string, n)
	for i := range items {
		items[i] = fmt.Sprintf(`{"question_text": "Question %d?", "option_a": "w", "option_b": "x", "option_c": "y", "option_d": "z", "correct_answer": "a", "explanation": "e", "topic": "Motion"}`, i)
	}
	return `{"questions": [` + strings.Join(items, ",") + `]}`
}

func TestGenerateCreatesQuiz(t *testing.T) {
	llm := &scriptedLLM{responses: []string{"```json\n" + questionsJSON(7) + "\n```"}}
	chunks := &memoryChunks{chunks: []models.Chunk{{Index: 0, Content: "First law."}, {Index: 1, Content: "Second law."}}}
	store := &memoryQuizzes{}
	g := NewGenerator(llm, chunks, store, 0, nil)

	quiz, questions, err := g.Generate(context.Background(), processedDoc(), models.QuizKindMCQ, 5, models.DifficultyHard)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(questions) != 5 || quiz.QuestionsCount != 5 || quiz.RequestedCount != 5 {
		t.Fatalf("expected extra questions to be dropped, got %d", len(questions))
	}
	if quiz.Title != "MCQ Quiz - Laws of Motion - Hard" {
		t.Fatalf("unexpected title %q", quiz.Title)
	}
	for i, q := range questions {
		if q.QuizID != quiz.ID || q.Position != i || q.ID == "" {
			t.Fatalf("question %d not linked to quiz: %+v", i, q)
		}
	}
	if len(store.quizzes) != 1 || len(store.questions[quiz.ID]) != 5 {
		t.Fatalf("quiz not persisted")
	}
	if !strings.Contains(llm.prompts[0], "First law.\nSecond law.") {
		t.Fatalf("expected chunks joined in index order in the prompt")
	}
}

func TestGenerateRejectsUnprocessedDocument(t *testing.T) {
	llm := &scriptedLLM{}
	doc := processedDoc()
	doc.Status = models.StatusUnprocessed

	_, _, err := NewGenerator(llm, &memoryChunks{}, &memoryQuizzes{}, 0, nil).
		Generate(context.Background(), doc, models.QuizKindSAQ, 3, models.DifficultyEasy)
	if !errors.Is(err, ErrDocumentNotReady) {
		t.Fatalf("expected ErrDocumentNotReady, got %v", err)
	}
	if len(llm.prompts) != 0 {
		t.Fatalf("LLM must not be called for an unprocessed document")
	}
}

func TestGenerateValidatesRequest(t *testing.T) {
	g := NewGenerator(&scriptedLLM{}, &memoryChunks{}, &memoryQuizzes{}, 0, nil)
	ctx := context.Background()
	cases := []struct {
		kind       models.QuizKind
		count      int
		difficulty models.Difficulty
	}{
		{"essay", 5, models.DifficultyEasy},
		{models.QuizKindMCQ, 0, models.DifficultyEasy},
		{models.QuizKindMCQ, 21, models.DifficultyEasy},
		{models.QuizKindMCQ, 5, "impossible"},
	}
	for _, tc := range cases {
		if _, _, err := g.Generate(ctx, processedDoc(), tc.kind, tc.count, tc.difficulty); !errors.Is(err, ErrInvalidRequest) {
			t.Errorf("%+v: expected ErrInvalidRequest, got %v", tc, err)
		}
	}
}

func TestGenerateFailuresPersistNothing(t *testing.T) {
	chunks := &memoryChunks{chunks: []models.Chunk{{Content: "Some content."}}}
	ctx := context.Background()

	store := &memoryQuizzes{}
	_, _, err := NewGenerator(&scriptedLLM{err: errors.New("unavailable")}, chunks, store, 0, nil).
		Generate(ctx, processedDoc(), models.QuizKindMCQ, 3, models.DifficultyMedium)
	var llmErr *ai.LLMServiceError
	if !errors.As(err, &llmErr) {
		t.Fatalf("expected LLMServiceError, got %v", err)
	}

	_, _, err = NewGenerator(&scriptedLLM{responses: []string{"no json here"}}, chunks, store, 0, nil).
		Generate(ctx, processedDoc(), models.QuizKindMCQ, 3, models.DifficultyMedium)
	var invalid *InvalidGenerationResponseError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidGenerationResponseError, got %v", err)
	}

	if len(store.quizzes) != 0 {
		t.Fatalf("failed generations must not persist a quiz")
	}
}

func TestLeadingContentBudget(t *testing.T) {
	chunks := &memoryChunks{}
	for i := 0; i < 20; i++ {
		chunks.chunks = append(chunks.chunks, models.Chunk{Index: i, Content: strings.Repeat("é", 100)})
	}
	g := NewGenerator(&scriptedLLM{}, chunks, &memoryQuizzes{}, 250, nil)

	content, err := g.leadingContent(context.Background(), "doc-1")
	if err != nil {
		t.Fatal(err)
	}
	if n := utf8.RuneCountInString(content); n != 250 {
		t.Fatalf("expected content capped at 250 runes, got %d", n)
	}
	if !strings.HasPrefix(content, strings.Repeat("é", 100)+"\n") {
		t.Fatalf("expected chunks separated by newlines")
	}
}

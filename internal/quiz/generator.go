// Package quiz generates quizzes from document content and grades attempts.
package quiz

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"study-assistant-platform/internal/ai"
	"study-assistant-platform/internal/logger"
	"study-assistant-platform/internal/telemetry"
	"study-assistant-platform/models"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const (
	MinQuestions         = 1
	MaxQuestions         = 20
	DefaultContentBudget = 8000
)

// ChunkSource walks a document's chunks in ascending index order until fn returns false.
type ChunkSource interface {
	ForEachChunk(ctx context.Context, documentID string, fn func(models.Chunk) bool) error
}

// QuizWriter stores a quiz together with its questions.
type QuizWriter interface {
	CreateQuiz(ctx context.Context, quiz *models.Quiz, questions []models.Question) error
}

type Generator struct {
	llm           ai.LLM
	chunks        ChunkSource
	quizzes       QuizWriter
	contentBudget int
	logger        *slog.Logger
	metrics       *telemetry.Metrics
	now           func() time.Time
}

func NewGenerator(llm ai.LLM, chunks ChunkSource, quizzes QuizWriter, contentBudget int, metrics *telemetry.Metrics) *Generator {
	if contentBudget <= 0 {
		contentBudget = DefaultContentBudget
	}
	return &Generator{
		llm:           llm,
		chunks:        chunks,
		quizzes:       quizzes,
		contentBudget: contentBudget,
		logger:        logger.Get(),
		metrics:       metrics,
		now:           time.Now,
	}
}

// Generate makes one LLM call grounded in the document's leading content and
// persists the quiz only when the response parses.
func (g *Generator) Generate(ctx context.Context, doc *models.Document, kind models.QuizKind, count int, difficulty models.Difficulty) (*models.Quiz, []models.Question, error) {
	if !kind.Valid() {
		return nil, nil, fmt.Errorf("%w: unknown quiz type %q", ErrInvalidRequest, kind)
	}
	if difficulty == "" {
		difficulty = models.DifficultyMedium
	}
	if !difficulty.Valid() {
		return nil, nil, fmt.Errorf("%w: unknown difficulty %q", ErrInvalidRequest, difficulty)
	}
	if count < MinQuestions || count > MaxQuestions {
		return nil, nil, fmt.Errorf("%w: questions_count must be between %d and %d", ErrInvalidRequest, MinQuestions, MaxQuestions)
	}
	if !doc.IsProcessed() {
		return nil, nil, ErrDocumentNotReady
	}

	ctx, span := otel.Tracer("quiz").Start(ctx, "quiz.generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("document.id", doc.ID),
		attribute.String("quiz.kind", string(kind)),
		attribute.Int("quiz.count", count),
	)

	content, err := g.leadingContent(ctx, doc.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load document content: %w", err)
	}
	if strings.TrimSpace(content) == "" {
		return nil, nil, fmt.Errorf("%w: document has no text content", ErrDocumentNotReady)
	}

	raw, err := g.llm.Generate(ctx, buildGenerationPrompt(content, kind, count, difficulty))
	if err != nil {
		span.RecordError(err)
		return nil, nil, err
	}

	questions, err := ParseQuestions(raw, kind)
	if err != nil {
		span.RecordError(err)
		g.logger.Warn("Discarding unparseable quiz response",
			"document_id", doc.ID, "kind", kind, "error", err, "response_bytes", len(raw))
		return nil, nil, err
	}
	if len(questions) > count {
		questions = questions[:count]
	}

	quiz := &models.Quiz{
		ID:             uuid.NewString(),
		DocumentID:     doc.ID,
		DocumentTitle:  doc.Title,
		UserID:         doc.UserID,
		Kind:           kind,
		Title:          fmt.Sprintf("%s Quiz - %s - %s", strings.ToUpper(string(kind)), doc.Title, difficulty.Title()),
		Difficulty:     difficulty,
		RequestedCount: count,
		QuestionsCount: len(questions),
		CreatedAt:      g.now().UTC(),
	}
	for i := range questions {
		questions[i].ID = uuid.NewString()
		questions[i].QuizID = quiz.ID
		questions[i].Position = i
	}

	if err := g.quizzes.CreateQuiz(ctx, quiz, questions); err != nil {
		return nil, nil, fmt.Errorf("failed to save quiz: %w", err)
	}

	g.metrics.RecordQuizGenerated(string(kind))
	g.logger.Info("Quiz generated",
		"quiz_id", quiz.ID, "document_id", doc.ID, "kind", kind,
		"requested", count, "generated", len(questions))
	return quiz, questions, nil
}

// leadingContent joins chunks in index order with newlines and caps the
// result at contentBudget runes.
func (g *Generator) leadingContent(ctx context.Context, documentID string) (string, error) {
	var sb strings.Builder
	used := 0
	err := g.chunks.ForEachChunk(ctx, documentID, func(c models.Chunk) bool {
		sep := 0
		if used > 0 {
			sep = 1
		}
		remaining := g.contentBudget - used - sep
		if remaining <= 0 {
			return false
		}
		if sep == 1 {
			sb.WriteByte('\n')
		}
		text := c.Content
		if n := utf8.RuneCountInString(text); n > remaining {
			text = string([]rune(text)[:remaining])
		}
		sb.WriteString(text)
		used += sep + utf8.RuneCountInString(text)
		return used < g.contentBudget
	})
	if err != nil {
		return "", err
	}
	return sb.String(), nil
}

package database

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"study-assistant-platform/internal/progress"
	"study-assistant-platform/internal/quiz"
	"study-assistant-platform/models"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// testStore connects to MONGO_TEST_URI and uses a throwaway database.
func testStore(t *testing.T) *Store {
	t.Helper()
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	db := client.Database("study_assistant_test_" + uuid.NewString()[:8])
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})

	if err := EnsureIndexes(ctx, db); err != nil {
		t.Fatalf("ensure indexes: %v", err)
	}
	return NewStore(db)
}

func TestDocumentGenerationGuards(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	doc := &models.Document{ID: uuid.NewString(), UserID: "u1", Title: "Optics", Status: models.StatusUnprocessed, UploadedAt: time.Now().UTC()}
	if err := s.Documents.Create(ctx, doc); err != nil {
		t.Fatal(err)
	}

	reset, err := s.Documents.ResetForReprocess(ctx, doc.ID, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if reset.Generation != 1 {
		t.Fatalf("expected generation 1, got %d", reset.Generation)
	}

	ok, err := s.Documents.MarkProcessed(ctx, doc.ID, 0, 3, 10)
	if err != nil || ok {
		t.Fatalf("stale generation must not mark processed (ok=%v err=%v)", ok, err)
	}
	ok, err = s.Documents.MarkProcessed(ctx, doc.ID, 1, 3, 10)
	if err != nil || !ok {
		t.Fatalf("current generation should mark processed (ok=%v err=%v)", ok, err)
	}

	got, err := s.Documents.GetForUser(ctx, doc.ID, "u1")
	if err != nil || !got.IsProcessed() || got.ChunkCount != 10 {
		t.Fatalf("unexpected document: %+v (%v)", got, err)
	}
	if _, err := s.Documents.GetForUser(ctx, doc.ID, "someone-else"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for another user, got %v", err)
	}
}

func TestChunksReplaceAndStream(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	mk := func(n int) []models.Chunk {
		out := make([]models.Chunk, n)
		for i := range out {
			out[i] = models.Chunk{ID: uuid.NewString(), DocumentID: "d1", Index: i, Content: "c"}
		}
		return out
	}
	if err := s.Chunks.ReplaceChunks(ctx, "d1", mk(5)); err != nil {
		t.Fatal(err)
	}
	if err := s.Chunks.ReplaceChunks(ctx, "d1", mk(3)); err != nil {
		t.Fatal(err)
	}

	chunks, err := s.Chunks.ListChunks(ctx, "d1")
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected only the replacement set, got %d chunks", len(chunks))
	}
	for i, c := range chunks {
		if c.Index != i {
			t.Fatalf("expected dense ordered indices, got %d at %d", c.Index, i)
		}
	}
}

func TestCompleteAttemptOnce(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	attempt := &models.QuizAttempt{ID: uuid.NewString(), UserID: "u1", QuizID: "q", DocumentID: "d1", QuizKind: models.QuizKindMCQ, Status: models.AttemptInProgress, TotalQuestions: 2, StartedAt: time.Now().UTC()}
	if err := s.Attempts.Create(ctx, attempt); err != nil {
		t.Fatal(err)
	}

	now := time.Now().UTC()
	attempt.Score, attempt.CompletedAt = 1, &now
	answers := []models.Answer{{ID: uuid.NewString(), AttemptID: attempt.ID, QuestionID: "x", IsCorrect: true}}
	if err := s.Attempts.CompleteAttempt(ctx, attempt, answers); err != nil {
		t.Fatal(err)
	}
	if err := s.Attempts.CompleteAttempt(ctx, attempt, answers); !errors.Is(err, quiz.ErrAttemptCompleted) {
		t.Fatalf("expected ErrAttemptCompleted on second submission, got %v", err)
	}

	stats, err := s.Attempts.Stats(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalAttempts != 1 || stats.TotalQuestionsAnswered != 1 || stats.AverageScore != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestCompleteAttemptRollsBackOnAnswerFailure(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	attempt := &models.QuizAttempt{ID: uuid.NewString(), UserID: "u1", QuizID: "q", DocumentID: "d1", QuizKind: models.QuizKindMCQ, Status: models.AttemptInProgress, TotalQuestions: 2, StartedAt: time.Now().UTC()}
	if err := s.Attempts.Create(ctx, attempt); err != nil {
		t.Fatal(err)
	}

	now := time.Now().UTC()
	attempt.Score, attempt.CompletedAt = 2, &now
	// two answers for the same question violate the (attempt_id, question_id) index
	bad := []models.Answer{
		{ID: uuid.NewString(), AttemptID: attempt.ID, QuestionID: "x", IsCorrect: true},
		{ID: uuid.NewString(), AttemptID: attempt.ID, QuestionID: "x", IsCorrect: true},
	}
	if err := s.Attempts.CompleteAttempt(ctx, attempt, bad); err == nil {
		t.Fatalf("expected duplicate answers to fail")
	}

	reopened, err := s.Attempts.Get(ctx, attempt.ID, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if reopened.Status != models.AttemptInProgress || reopened.Score != 0 || reopened.CompletedAt != nil {
		t.Fatalf("attempt not rolled back: %+v", reopened)
	}
	if left, _ := s.Attempts.Answers(ctx, attempt.ID); len(left) != 0 {
		t.Fatalf("expected partial answers removed, found %d", len(left))
	}

	good := []models.Answer{
		{ID: uuid.NewString(), AttemptID: attempt.ID, QuestionID: "x", IsCorrect: true},
		{ID: uuid.NewString(), AttemptID: attempt.ID, QuestionID: "y", IsCorrect: true},
	}
	if err := s.Attempts.CompleteAttempt(ctx, attempt, good); err != nil {
		t.Fatalf("retry after rollback: %v", err)
	}
	if stored, _ := s.Attempts.Answers(ctx, attempt.ID); len(stored) != 2 {
		t.Fatalf("expected 2 answers after retry, got %d", len(stored))
	}
}

func TestProgressUpsert(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	tracker := progress.NewTracker(s.Progress)

	for i := 0; i < 2; i++ {
		err := tracker.OnAttemptGraded(ctx, progress.AttemptOutcome{
			UserID: "u1", DocumentID: "d1", QuizKind: models.QuizKindMCQ,
			TotalQuestions: 4, CorrectCount: 3, TimeTaken: 60,
			Topics: []progress.TopicResult{{Topic: "Optics", Correct: true}},
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	records, err := s.Progress.ListProgress(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("expected a single progress record, got %d", len(records))
	}
	p := records[0]
	if p.TotalQuizzesTaken != 2 || p.TotalQuestionsAttempted != 8 || p.AverageScore != 75 {
		t.Fatalf("unexpected progress: %+v", p)
	}
}

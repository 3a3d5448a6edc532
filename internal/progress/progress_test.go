package progress

import (
	"context"
	"errors"
	"testing"
	"time"

	"study-assistant-platform/models"
)

type memoryStore struct {
	progress map[string]*models.UserProgress
	sessions []SessionDelta
	failWith error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{progress: make(map[string]*models.UserProgress)}
}

func (m *memoryStore) ApplyAttempt(_ context.Context, d ProgressDelta) (*models.UserProgress, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	key := d.UserID + "/" + d.DocumentID
	p, ok := m.progress[key]
	if !ok {
		p = &models.UserProgress{UserID: d.UserID, DocumentID: d.DocumentID}
		m.progress[key] = p
	}
	p.TotalQuizzesTaken++
	p.TotalQuestionsAttempted += d.Questions
	p.TotalCorrectAnswers += d.Correct
	p.AverageScore = models.Percentage(p.TotalCorrectAnswers, p.TotalQuestionsAttempted)
	p.Strengths = d.Strengths
	p.Weaknesses = d.Weaknesses
	p.LastActivity = d.At
	return p, nil
}

func (m *memoryStore) RecordSession(_ context.Context, d SessionDelta) error {
	m.sessions = append(m.sessions, d)
	return nil
}

func (m *memoryStore) ListProgress(_ context.Context, userID string) ([]models.UserProgress, error) {
	var out []models.UserProgress
	for _, p := range m.progress {
		if p.UserID == userID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func TestAnalyzeTopicsThresholds(t *testing.T) {
	results := []TopicResult{
		{"Optics", true}, {"Optics", true}, {"Optics", true}, {"Optics", false}, // 75
		{"Motion", true}, {"Motion", false}, // 50
		{"Waves", false}, {"Waves", false}, {"Waves", true}, // 33.33
		{"", true}, // General 100
	}
	strengths, weaknesses := AnalyzeTopics(results)

	if strengths["Optics"] != 75 || strengths["General"] != 100 || len(strengths) != 2 {
		t.Fatalf("unexpected strengths: %v", strengths)
	}
	if weaknesses["Waves"] != 33.33 || len(weaknesses) != 1 {
		t.Fatalf("unexpected weaknesses: %v", weaknesses)
	}
	if _, ok := strengths["Motion"]; ok {
		t.Fatalf("50%% accuracy is neither a strength nor a weakness")
	}
}

func TestTrackerAccumulates(t *testing.T) {
	store := newMemoryStore()
	tracker := NewTracker(store)
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	outcome := AttemptOutcome{
		UserID: "u1", DocumentID: "d1", QuizKind: models.QuizKindMCQ,
		TotalQuestions: 5, CorrectCount: 3, TimeTaken: 120, CompletedAt: now,
		Topics: []TopicResult{{"Optics", true}, {"Optics", true}, {"Optics", true}, {"Waves", false}, {"Waves", false}},
	}
	if err := tracker.OnAttemptGraded(ctx, outcome); err != nil {
		t.Fatal(err)
	}
	outcome.CorrectCount = 5
	if err := tracker.OnAttemptGraded(ctx, outcome); err != nil {
		t.Fatal(err)
	}

	p := store.progress["u1/d1"]
	if p.TotalQuizzesTaken != 2 || p.TotalQuestionsAttempted != 10 || p.TotalCorrectAnswers != 8 {
		t.Fatalf("unexpected totals: %+v", p)
	}
	if p.AverageScore != 80 {
		t.Fatalf("expected average 80, got %v", p.AverageScore)
	}
	if len(store.sessions) != 2 || store.sessions[0].TimeSpent != 120 {
		t.Fatalf("expected two session updates, got %+v", store.sessions)
	}

	summary, err := tracker.Summary(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if summary.TotalDocuments != 1 || summary.OverallAccuracy != 80 || summary.Strengths["Optics"] != 100 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestTrackerPropagatesStoreErrors(t *testing.T) {
	store := newMemoryStore()
	store.failWith = errors.New("mongo down")
	err := NewTracker(store).OnAttemptGraded(context.Background(), AttemptOutcome{UserID: "u", DocumentID: "d"})
	if !errors.Is(err, store.failWith) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
}

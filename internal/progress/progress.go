// Package progress records quiz outcomes against a user's per-document progress.
package progress

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"study-assistant-platform/models"
)

// Topic accuracy thresholds, in percent.
const (
	StrengthThreshold = 70.0
	WeaknessThreshold = 40.0
)

type TopicResult struct {
	Topic   string
	Correct bool
}

// AttemptOutcome is delivered exactly once per graded attempt.
type AttemptOutcome struct {
	UserID         string
	DocumentID     string
	QuizID         string
	AttemptID      string
	QuizKind       models.QuizKind
	TotalQuestions int
	CorrectCount   int
	Topics         []TopicResult
	TimeTaken      int // seconds
	CompletedAt    time.Time
}

// Recorder is called by the grading flow after an attempt has been stored.
type Recorder interface {
	OnAttemptGraded(ctx context.Context, outcome AttemptOutcome) error
}

// ProgressDelta is applied atomically to the (user, document) progress record.
type ProgressDelta struct {
	UserID     string
	DocumentID string
	Questions  int
	Correct    int
	Strengths  map[string]float64
	Weaknesses map[string]float64
	At         time.Time
}

type SessionDelta struct {
	UserID     string
	DocumentID string
	QuizKind   models.QuizKind
	Questions  int
	Correct    int
	TimeSpent  int
	At         time.Time
}

type Store interface {
	ApplyAttempt(ctx context.Context, delta ProgressDelta) (*models.UserProgress, error)
	RecordSession(ctx context.Context, delta SessionDelta) error
	ListProgress(ctx context.Context, userID string) ([]models.UserProgress, error)
}

// AnalyzeTopics returns per-topic accuracy for topics at or above the
// strength threshold and at or below the weakness threshold.
func AnalyzeTopics(results []TopicResult) (strengths, weaknesses map[string]float64) {
	type tally struct{ correct, total int }
	perTopic := make(map[string]*tally)
	for _, r := range results {
		topic := r.Topic
		if topic == "" {
			topic = models.DefaultTopic
		}
		t, ok := perTopic[topic]
		if !ok {
			t = &tally{}
			perTopic[topic] = t
		}
		t.total++
		if r.Correct {
			t.correct++
		}
	}

	strengths = make(map[string]float64)
	weaknesses = make(map[string]float64)
	for topic, t := range perTopic {
		accuracy := models.Percentage(t.correct, t.total)
		switch {
		case accuracy >= StrengthThreshold:
			strengths[topic] = accuracy
		case accuracy <= WeaknessThreshold:
			weaknesses[topic] = accuracy
		}
	}
	return strengths, weaknesses
}

type Tracker struct {
	store Store
}

func NewTracker(store Store) *Tracker {
	return &Tracker{store: store}
}

func (t *Tracker) OnAttemptGraded(ctx context.Context, o AttemptOutcome) error {
	if o.UserID == "" || o.DocumentID == "" {
		return fmt.Errorf("progress: outcome for attempt %s has no user or document", o.AttemptID)
	}
	at := o.CompletedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}

	strengths, weaknesses := AnalyzeTopics(o.Topics)
	if _, err := t.store.ApplyAttempt(ctx, ProgressDelta{
		UserID:     o.UserID,
		DocumentID: o.DocumentID,
		Questions:  o.TotalQuestions,
		Correct:    o.CorrectCount,
		Strengths:  strengths,
		Weaknesses: weaknesses,
		At:         at,
	}); err != nil {
		return fmt.Errorf("failed to update progress: %w", err)
	}

	if err := t.store.RecordSession(ctx, SessionDelta{
		UserID:     o.UserID,
		DocumentID: o.DocumentID,
		QuizKind:   o.QuizKind,
		Questions:  o.TotalQuestions,
		Correct:    o.CorrectCount,
		TimeSpent:  o.TimeTaken,
		At:         at,
	}); err != nil {
		return fmt.Errorf("failed to update study session: %w", err)
	}
	return nil
}

// Summary is the cross-document view of a user's progress.
type Summary struct {
	TotalDocuments  int                   `json:"total_documents"`
	TotalQuizzes    int                   `json:"total_quizzes"`
	TotalQuestions  int                   `json:"total_questions"`
	OverallAccuracy float64               `json:"overall_accuracy"`
	Strengths       map[string]float64    `json:"strengths"`
	Weaknesses      map[string]float64    `json:"weaknesses"`
	Documents       []models.UserProgress `json:"documents"`
}

func (t *Tracker) Summary(ctx context.Context, userID string) (*Summary, error) {
	records, err := t.store.ListProgress(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list progress: %w", err)
	}

	s := &Summary{TotalDocuments: len(records), Documents: records}
	strengthScores := make(map[string][]float64)
	weaknessScores := make(map[string][]float64)
	correct := 0
	for _, p := range records {
		s.TotalQuizzes += p.TotalQuizzesTaken
		s.TotalQuestions += p.TotalQuestionsAttempted
		correct += p.TotalCorrectAnswers
		for topic, score := range p.Strengths {
			strengthScores[topic] = append(strengthScores[topic], score)
		}
		for topic, score := range p.Weaknesses {
			weaknessScores[topic] = append(weaknessScores[topic], score)
		}
	}
	s.OverallAccuracy = models.Percentage(correct, s.TotalQuestions)
	s.Strengths = averageScores(strengthScores)
	s.Weaknesses = averageScores(weaknessScores)

	sort.Slice(s.Documents, func(i, j int) bool {
		return s.Documents[i].LastActivity.After(s.Documents[j].LastActivity)
	})
	return s, nil
}

func averageScores(scores map[string][]float64) map[string]float64 {
	out := make(map[string]float64, len(scores))
	for topic, values := range scores {
		var sum float64
		for _, v := range values {
			sum += v
		}
		out[topic] = math.Round(sum/float64(len(values))*100) / 100
	}
	return out
}

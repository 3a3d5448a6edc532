package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"study-assistant-platform/internal/logger"
	"study-assistant-platform/models"

	"github.com/go-co-op/gocron"
)

const sweepTag = "stale-ingestion-sweep"

type StaleDocumentSource interface {
	ListStaleUnprocessed(ctx context.Context, cutoff time.Time) ([]models.Document, error)
	Touch(ctx context.Context, id string, generation int64) error
}

// Sweeper re-enqueues documents whose ingestion job was lost, for example
// when the enqueue after upload failed or the task was archived.
type Sweeper struct {
	docs       StaleDocumentSource
	scheduler  IngestionScheduler
	interval   time.Duration
	staleAfter time.Duration
	cron       *gocron.Scheduler
	logger     *slog.Logger
	now        func() time.Time
}

func NewSweeper(docs StaleDocumentSource, scheduler IngestionScheduler, interval, staleAfter time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 15 * time.Minute
	}
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()
	s.SingletonModeAll()

	return &Sweeper{
		docs:       docs,
		scheduler:  scheduler,
		interval:   interval,
		staleAfter: staleAfter,
		cron:       s,
		logger:     logger.Get(),
		now:        time.Now,
	}
}

func (s *Sweeper) Start() error {
	_, err := s.cron.Every(s.interval).Tag(sweepTag).Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.interval)
		defer cancel()
		if _, err := s.RunOnce(ctx); err != nil {
			s.logger.Error("Stale ingestion sweep failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule sweeper: %w", err)
	}
	s.cron.StartAsync()
	s.logger.Info("Stale ingestion sweeper started", "interval", s.interval.String(), "stale_after", s.staleAfter.String())
	return nil
}

func (s *Sweeper) Stop() {
	s.cron.Stop()
}

// RunOnce re-enqueues every stale document at its current generation and
// returns how many were scheduled.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	stale, err := s.docs.ListStaleUnprocessed(ctx, s.now().Add(-s.staleAfter))
	if err != nil {
		return 0, fmt.Errorf("failed to list stale documents: %w", err)
	}

	scheduled := 0
	for _, doc := range stale {
		if _, err := s.scheduler.EnqueueIngestion(ctx, doc.ID, doc.Generation); err != nil {
			s.logger.Error("Failed to re-enqueue ingestion", "document_id", doc.ID, "error", err)
			continue
		}
		if err := s.docs.Touch(ctx, doc.ID, doc.Generation); err != nil {
			s.logger.Warn("Failed to touch document", "document_id", doc.ID, "error", err)
		}
		scheduled++
	}
	if scheduled > 0 {
		s.logger.Info("Re-enqueued stale documents", "count", scheduled)
	}
	return scheduled, nil
}

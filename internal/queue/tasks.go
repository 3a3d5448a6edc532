package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"study-assistant-platform/internal/logger"

	"github.com/hibiken/asynq"
)

const (
	TaskIngestDocument = "document:ingest"

	QueueCritical = "critical"
	QueueDefault  = "default"

	ingestTimeout = 10 * time.Minute
	ingestRetries = 3
)

// IngestPayload names the document and the generation the job was scheduled for.
type IngestPayload struct {
	DocumentID string `json:"document_id"`
	Generation int64  `json:"generation"`
}

// NewIngestTask builds the task. The task id makes repeated enqueues of the
// same generation collapse into one pending job.
func NewIngestTask(documentID string, generation int64) (*asynq.Task, error) {
	payload, err := json.Marshal(IngestPayload{DocumentID: documentID, Generation: generation})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskIngestDocument,
		payload,
		asynq.TaskID(ingestTaskID(documentID, generation)),
		asynq.MaxRetry(ingestRetries),
		asynq.Timeout(ingestTimeout),
		asynq.Queue(QueueCritical),
	), nil
}

// Enqueuer is the part of asynq.Client the scheduler uses.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// TaskInspector is the part of asynq.Inspector used to look behind a task id
// conflict.
type TaskInspector interface {
	GetTaskInfo(queue, id string) (*asynq.TaskInfo, error)
	DeleteTask(queue, id string) error
}

// IsFailure tells the asynq server which handler errors use up a retry. A
// busy document lock only means another delivery is running, so it is
// retried without counting against MaxRetry.
func IsFailure(err error) bool {
	return !errors.Is(err, ErrLockHeld)
}

type Scheduler struct {
	client    Enqueuer
	inspector TaskInspector
}

// NewScheduler builds a scheduler. inspector may be nil, in which case any
// task id conflict is taken to mean the job is still queued.
func NewScheduler(client Enqueuer, inspector TaskInspector) *Scheduler {
	return &Scheduler{client: client, inspector: inspector}
}

func ingestTaskID(documentID string, generation int64) string {
	return fmt.Sprintf("ingest:%s:%d", documentID, generation)
}

// EnqueueIngestion schedules ingestion of one document generation. A job that
// is still pending, scheduled, retrying or running for the same generation
// counts as scheduled. An archived or completed one is removed and replaced,
// since its id would otherwise block the generation forever.
func (s *Scheduler) EnqueueIngestion(ctx context.Context, documentID string, generation int64) (string, error) {
	task, err := NewIngestTask(documentID, generation)
	if err != nil {
		return "", fmt.Errorf("failed to build ingest task: %w", err)
	}
	taskID := ingestTaskID(documentID, generation)

	info, err := s.client.EnqueueContext(ctx, task)
	if isConflict(err) {
		var live bool
		live, err = s.clearFinished(taskID)
		if err != nil {
			return "", err
		}
		if live {
			logger.Debug("Ingestion already scheduled", "document_id", documentID, "generation", generation)
			return taskID, nil
		}

		// The old task is gone, try once more with the same id
		info, err = s.client.EnqueueContext(ctx, task)
		if isConflict(err) {
			return taskID, nil
		}
	}
	if err != nil {
		return "", fmt.Errorf("failed to enqueue ingestion: %w", err)
	}

	logger.Info("Ingestion scheduled", "document_id", documentID, "generation", generation, "task_id", info.ID, "queue", info.Queue)
	return info.ID, nil
}

// clearFinished reports whether the task holding taskID is still live, and
// deletes it when it has been archived or completed.
func (s *Scheduler) clearFinished(taskID string) (bool, error) {
	if s.inspector == nil {
		return true, nil
	}

	info, err := s.inspector.GetTaskInfo(QueueCritical, taskID)
	if errors.Is(err, asynq.ErrTaskNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to inspect task %s: %w", taskID, err)
	}

	switch info.State {
	case asynq.TaskStateArchived, asynq.TaskStateCompleted:
	default:
		return true, nil
	}

	logger.Warn("Replacing finished ingestion task", "task_id", taskID, "state", info.State.String(), "last_error", info.LastErr)
	if err := s.inspector.DeleteTask(QueueCritical, taskID); err != nil && !errors.Is(err, asynq.ErrTaskNotFound) {
		return false, fmt.Errorf("failed to delete task %s: %w", taskID, err)
	}
	return false, nil
}

func isConflict(err error) bool {
	return errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask)
}

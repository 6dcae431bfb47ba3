package driven

import (
	"context"

	"github.com/custodia-labs/recall/internal/core/domain"
)

// SchedulerStore persists task state and run history so intervals and
// backoff survive restarts.
type SchedulerStore interface {
	// GetTask returns nil and no error if the task does not exist.
	GetTask(ctx context.Context, taskID string) (*domain.ScheduledTask, error)

	// ListTasks returns all tasks ordered by ID.
	ListTasks(ctx context.Context) ([]domain.ScheduledTask, error)

	// SaveTask creates or replaces a task.
	SaveTask(ctx context.Context, task *domain.ScheduledTask) error

	// DeleteTask removes a task and its run history.
	DeleteTask(ctx context.Context, taskID string) error

	// RecordRun appends a run to the task's history.
	RecordRun(ctx context.Context, run *domain.TaskResult) error

	// ListRuns returns up to limit runs of a task, most recent first.
	ListRuns(ctx context.Context, taskID string, limit int) ([]domain.TaskResult, error)

	// PruneRuns keeps only the most recent keep runs of every task.
	PruneRuns(ctx context.Context, keep int) error
}

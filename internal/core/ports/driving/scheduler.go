package driving

import (
	"context"

	"github.com/custodia-labs/recall/internal/core/domain"
)

// Scheduler runs background tasks such as periodic snapshot saves and
// retries of failed indexing runs.
type Scheduler interface {
	// Start runs due tasks until Stop is called or ctx is done.
	Start(ctx context.Context) error

	// Stop waits for running tasks and flushes a pending snapshot.
	Stop() error

	// Tasks returns the registered tasks with their persisted state.
	Tasks(ctx context.Context) ([]domain.ScheduledTask, error)

	// History returns up to limit runs of a task, most recent first.
	History(ctx context.Context, taskID string, limit int) ([]domain.TaskResult, error)

	// RunNow executes a task immediately and waits for it.
	// Returns domain.ErrNotFound for unknown tasks, domain.ErrTaskRunning
	// when a run is already in progress and domain.ErrSchedulerStopped once
	// Stop has been called.
	RunNow(ctx context.Context, taskID string) (*domain.TaskResult, error)
}

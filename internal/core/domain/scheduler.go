package domain

import "time"

// Task IDs for built-in tasks.
const (
	TaskIDSnapshotSave = "snapshot-save"
	TaskIDRetryFailed  = "retry-failed"
)

// maxBackoffFactor caps how far consecutive failures push out a task's next run.
const maxBackoffFactor = 8

// ScheduledTask is the persisted state of a recurring background task.
type ScheduledTask struct {
	ID       string
	Name     string
	Interval time.Duration
	Enabled  bool

	LastRun     time.Time
	NextRun     time.Time
	LastSuccess time.Time

	// LastError is the message of the most recent failure. Cleared on success.
	LastError string

	// Failures counts consecutive failed runs.
	Failures int
}

// Due reports whether the task should run at now.
func (t *ScheduledTask) Due(now time.Time) bool {
	if !t.Enabled || t.Interval <= 0 {
		return false
	}
	return t.NextRun.IsZero() || !t.NextRun.After(now)
}

// NextRunAfter returns when the task runs next given a run that ended at
// ended. Each consecutive failure doubles the delay, up to eight intervals,
// so a broken object store or embedder is not hammered.
func (t *ScheduledTask) NextRunAfter(ended time.Time) time.Time {
	factor := 1
	for i := 0; i < t.Failures && factor < maxBackoffFactor; i++ {
		factor *= 2
	}
	return ended.Add(time.Duration(factor) * t.Interval)
}

// TaskResult records one execution of a task.
type TaskResult struct {
	// RunID correlates the result with the run's log lines.
	RunID  string
	TaskID string

	StartedAt time.Time
	EndedAt   time.Time
	Success   bool
	Error     string

	// ItemsProcessed is entries written for snapshot saves and documents
	// recovered for failed-document retries.
	ItemsProcessed int

	// Detail is a one-line human summary of the run.
	Detail string
}

// Duration is how long the run took.
func (r *TaskResult) Duration() time.Duration {
	if r.EndedAt.Before(r.StartedAt) {
		return 0
	}
	return r.EndedAt.Sub(r.StartedAt)
}

// SchedulerConfig holds scheduler configuration.
type SchedulerConfig struct {
	// Enabled is the master switch for the scheduler.
	Enabled bool

	// TaskConfigs holds per-task configuration keyed by task ID.
	TaskConfigs map[string]TaskConfig
}

// TaskConfig holds configuration for a single task.
type TaskConfig struct {
	Enabled  bool
	Interval time.Duration
}

// GetTaskConfig returns the configuration for a specific task.
// Returns a zero TaskConfig if the task is not configured.
func (c *SchedulerConfig) GetTaskConfig(taskID string) TaskConfig {
	if c.TaskConfigs == nil {
		return TaskConfig{}
	}
	return c.TaskConfigs[taskID]
}

// DefaultSchedulerConfig saves the snapshot every five minutes.
// Failed-document retries are opt-in.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Enabled: true,
		TaskConfigs: map[string]TaskConfig{
			TaskIDSnapshotSave: {
				Enabled:  true,
				Interval: 5 * time.Minute,
			},
			TaskIDRetryFailed: {
				Enabled:  false,
				Interval: 30 * time.Minute,
			},
		},
	}
}

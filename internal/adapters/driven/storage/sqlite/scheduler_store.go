package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
)

// schedulerStore implements driven.SchedulerStore on the tasks and
// task_runs tables.
type schedulerStore struct {
	store *Store
}

var _ driven.SchedulerStore = (*schedulerStore)(nil)

const (
	taskColumns = `id, name, interval_ms, enabled, last_run, next_run, last_success, last_error, failures`
	runColumns  = `run_id, task_id, started_at, ended_at, success, error, items_processed, detail`
)

// GetTask retrieves a task by ID. It returns nil and no error when the task
// does not exist.
func (s *schedulerStore) GetTask(ctx context.Context, taskID string) (*domain.ScheduledTask, error) {
	row := s.store.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, taskID)

	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning task %s: %w", taskID, err)
	}
	return task, nil
}

// ListTasks returns every task ordered by ID.
func (s *schedulerStore) ListTasks(ctx context.Context) ([]domain.ScheduledTask, error) {
	rows, err := s.store.db.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}
	defer rows.Close()

	var tasks []domain.ScheduledTask
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning task: %w", err)
		}
		tasks = append(tasks, *task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tasks: %w", err)
	}
	return tasks, nil
}

// SaveTask persists a task, replacing any stored task with the same ID.
func (s *schedulerStore) SaveTask(ctx context.Context, task *domain.ScheduledTask) error {
	if task == nil || task.ID == "" {
		return domain.ErrInvalidInput
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			interval_ms = excluded.interval_ms,
			enabled = excluded.enabled,
			last_run = excluded.last_run,
			next_run = excluded.next_run,
			last_success = excluded.last_success,
			last_error = excluded.last_error,
			failures = excluded.failures
	`, task.ID, task.Name, task.Interval.Milliseconds(), boolToInt(task.Enabled),
		formatNullableTime(task.LastRun), formatNullableTime(task.NextRun),
		formatNullableTime(task.LastSuccess), nullString(task.LastError), task.Failures)
	if err != nil {
		return fmt.Errorf("saving task %s: %w", task.ID, err)
	}
	return nil
}

// DeleteTask removes the task. Its runs go with it through the foreign key.
func (s *schedulerStore) DeleteTask(ctx context.Context, taskID string) error {
	if _, err := s.store.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, taskID); err != nil {
		return fmt.Errorf("deleting task %s: %w", taskID, err)
	}
	return nil
}

// RecordRun stores a run. The task must already exist.
func (s *schedulerStore) RecordRun(ctx context.Context, run *domain.TaskResult) error {
	if run == nil || run.RunID == "" || run.TaskID == "" {
		return domain.ErrInvalidInput
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO task_runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, run.RunID, run.TaskID,
		run.StartedAt.UTC().Format(timeLayout), run.EndedAt.UTC().Format(timeLayout),
		boolToInt(run.Success), nullString(run.Error), run.ItemsProcessed, run.Detail)
	if err != nil {
		return fmt.Errorf("recording run of %s: %w", run.TaskID, err)
	}
	return nil
}

// ListRuns returns up to limit runs of a task, most recent first.
func (s *schedulerStore) ListRuns(ctx context.Context, taskID string, limit int) ([]domain.TaskResult, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.store.db.QueryContext(ctx, `
		SELECT `+runColumns+` FROM task_runs
		WHERE task_id = ?
		ORDER BY started_at DESC
		LIMIT ?
	`, taskID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs of %s: %w", taskID, err)
	}
	defer rows.Close()

	runs := make([]domain.TaskResult, 0, limit)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}
	return runs, nil
}

// PruneRuns keeps the keep most recent runs of each task and deletes the rest.
func (s *schedulerStore) PruneRuns(ctx context.Context, keep int) error {
	if keep < 0 {
		keep = 0
	}

	_, err := s.store.db.ExecContext(ctx, `
		DELETE FROM task_runs
		WHERE run_id IN (
			SELECT run_id FROM (
				SELECT run_id,
				       ROW_NUMBER() OVER (PARTITION BY task_id ORDER BY started_at DESC) AS rn
				FROM task_runs
			) WHERE rn > ?
		)
	`, keep)
	if err != nil {
		return fmt.Errorf("pruning task runs: %w", err)
	}
	return nil
}

func scanTask(row rowScanner) (*domain.ScheduledTask, error) {
	var task domain.ScheduledTask
	var intervalMS int64
	var enabled int
	var lastRun, nextRun, lastSuccess, lastError sql.NullString

	if err := row.Scan(&task.ID, &task.Name, &intervalMS, &enabled,
		&lastRun, &nextRun, &lastSuccess, &lastError, &task.Failures); err != nil {
		return nil, err
	}

	task.Interval = time.Duration(intervalMS) * time.Millisecond
	task.Enabled = enabled == 1
	task.LastRun = parseNullableTime(lastRun)
	task.NextRun = parseNullableTime(nextRun)
	task.LastSuccess = parseNullableTime(lastSuccess)
	task.LastError = lastError.String
	return &task, nil
}

func scanRun(row rowScanner) (*domain.TaskResult, error) {
	var run domain.TaskResult
	var startedAt, endedAt string
	var success int
	var errMsg sql.NullString

	if err := row.Scan(&run.RunID, &run.TaskID, &startedAt, &endedAt,
		&success, &errMsg, &run.ItemsProcessed, &run.Detail); err != nil {
		return nil, err
	}

	run.StartedAt = parseNullableTime(sql.NullString{String: startedAt, Valid: true})
	run.EndedAt = parseNullableTime(sql.NullString{String: endedAt, Valid: true})
	run.Success = success == 1
	run.Error = errMsg.String
	return &run, nil
}

package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/core/ports/driving"
	"github.com/custodia-labs/recall/internal/logger"
)

// Ensure Scheduler implements the interface.
var _ driving.Scheduler = (*Scheduler)(nil)

// historyLimit is the number of runs kept per task.
const historyLimit = 100

// FailedRetrier re-indexes documents whose last indexing run failed.
type FailedRetrier interface {
	RetryFailed(ctx context.Context) (int, error)
}

// taskOutcome summarises a successful run.
type taskOutcome struct {
	items  int
	detail string
}

// taskDef is a task the scheduler knows how to run.
type taskDef struct {
	id   string
	name string
	run  func(ctx context.Context) (taskOutcome, error)
}

// Scheduler runs the snapshot-save and retry-failed tasks on their
// configured intervals. Task state is kept in a SchedulerStore so intervals
// and failure backoff carry across restarts.
type Scheduler struct {
	config   domain.SchedulerConfig
	store    driven.SchedulerStore
	snapshot driving.SnapshotService
	defs     []taskDef
	tick     time.Duration
	now      func() time.Time

	mu          sync.Mutex
	running     bool
	stopped     bool
	initialised bool
	stopCh      chan struct{}
	wg          sync.WaitGroup
	active      map[string]bool
}

// NewScheduler creates a scheduler. A task is only registered when its
// dependency is present: snapshot for snapshot-save, retrier for retry-failed.
func NewScheduler(
	config domain.SchedulerConfig,
	store driven.SchedulerStore,
	snapshot driving.SnapshotService,
	retrier FailedRetrier,
) *Scheduler {
	s := &Scheduler{
		config:   config,
		store:    store,
		snapshot: snapshot,
		tick:     time.Minute,
		now:      time.Now,
		active:   make(map[string]bool),
	}

	if snapshot != nil {
		s.defs = append(s.defs, taskDef{
			id:   domain.TaskIDSnapshotSave,
			name: "Snapshot Save",
			run:  s.saveSnapshot,
		})
	}
	if retrier != nil {
		s.defs = append(s.defs, taskDef{
			id:   domain.TaskIDRetryFailed,
			name: "Retry Failed Documents",
			run: func(ctx context.Context) (taskOutcome, error) {
				n, err := retrier.RetryFailed(ctx)
				if err != nil {
					return taskOutcome{items: n}, err
				}
				return taskOutcome{items: n, detail: fmt.Sprintf("%d failed documents re-indexed", n)}, nil
			},
		})
	}
	return s
}

// SetTick sets how often the scheduler checks for due tasks.
func (s *Scheduler) SetTick(d time.Duration) {
	if d > 0 {
		s.tick = d
	}
}

// Start runs due tasks until Stop is called or ctx is done. A disabled
// scheduler only waits.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.stopped = false
	s.stopCh = make(chan struct{})
	stopCh := s.stopCh
	s.mu.Unlock()

	if !s.config.Enabled {
		logger.Info("scheduler disabled")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stopCh:
			return nil
		}
	}

	if err := s.ensureInitialised(ctx); err != nil {
		logger.Warn("scheduler: failed to initialise tasks", "error", err)
	}

	s.checkAndRunDueTasks(ctx)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stopCh:
			return nil
		case <-ticker.C:
			s.checkAndRunDueTasks(ctx)
		}
	}
}

// Stop waits for running tasks and then saves the index if it changed. No
// task starts after Stop is called.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.stopped = true
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()

	if s.snapshot != nil {
		if _, err := s.snapshot.SaveIfChanged(context.Background()); err != nil {
			return fmt.Errorf("final snapshot: %w", err)
		}
	}
	return nil
}

// Tasks returns the registered tasks with their persisted state.
func (s *Scheduler) Tasks(ctx context.Context) ([]domain.ScheduledTask, error) {
	if err := s.ensureInitialised(ctx); err != nil {
		return nil, err
	}
	return s.store.ListTasks(ctx)
}

// History returns up to limit runs of a task, most recent first.
func (s *Scheduler) History(ctx context.Context, taskID string, limit int) ([]domain.TaskResult, error) {
	if s.def(taskID) == nil {
		return nil, fmt.Errorf("task %q: %w", taskID, domain.ErrNotFound)
	}
	return s.store.ListRuns(ctx, taskID, limit)
}

// RunNow executes a task immediately regardless of its schedule or enabled
// flag. The run is recorded like a scheduled one.
func (s *Scheduler) RunNow(ctx context.Context, taskID string) (*domain.TaskResult, error) {
	def := s.def(taskID)
	if def == nil {
		return nil, fmt.Errorf("task %q: %w", taskID, domain.ErrNotFound)
	}
	if err := s.ensureInitialised(ctx); err != nil {
		return nil, err
	}
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, fmt.Errorf("task %q: %w", taskID, domain.ErrNotFound)
	}

	if err := s.acquire(taskID); err != nil {
		return nil, fmt.Errorf("task %q: %w", taskID, err)
	}
	defer s.release(taskID)

	return s.execute(ctx, def, task), nil
}

func (s *Scheduler) def(taskID string) *taskDef {
	for i := range s.defs {
		if s.defs[i].id == taskID {
			return &s.defs[i]
		}
	}
	return nil
}

// ensureInitialised syncs the stored tasks with the registered ones once.
func (s *Scheduler) ensureInitialised(ctx context.Context) error {
	s.mu.Lock()
	done := s.initialised
	s.mu.Unlock()
	if done {
		return nil
	}

	if err := s.initialiseTasks(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	s.initialised = true
	s.mu.Unlock()
	return nil
}

// initialiseTasks creates or updates every registered task from config and
// deletes stored tasks that are no longer registered.
func (s *Scheduler) initialiseTasks(ctx context.Context) error {
	for _, def := range s.defs {
		if err := s.ensureTask(ctx, def, s.config.GetTaskConfig(def.id)); err != nil {
			return err
		}
	}

	stored, err := s.store.ListTasks(ctx)
	if err != nil {
		return err
	}
	for _, task := range stored {
		if s.def(task.ID) != nil {
			continue
		}
		if err := s.store.DeleteTask(ctx, task.ID); err != nil {
			return err
		}
		logger.Debug("scheduler: removed stale task", "task", task.ID)
	}
	return nil
}

// ensureTask creates or updates a task in the store. A changed interval
// reschedules the next run from now.
func (s *Scheduler) ensureTask(ctx context.Context, def taskDef, cfg domain.TaskConfig) error {
	task, err := s.store.GetTask(ctx, def.id)
	if err != nil {
		return err
	}

	now := s.now()
	if task == nil {
		task = &domain.ScheduledTask{
			ID:       def.id,
			Name:     def.name,
			Interval: cfg.Interval,
			Enabled:  cfg.Enabled,
			NextRun:  now.Add(cfg.Interval),
		}
	} else {
		if task.Interval != cfg.Interval {
			task.Interval = cfg.Interval
			task.NextRun = now.Add(cfg.Interval)
		}
		task.Name = def.name
		task.Enabled = cfg.Enabled
	}

	return s.store.SaveTask(ctx, task)
}

// checkAndRunDueTasks launches every due task that is not already running.
func (s *Scheduler) checkAndRunDueTasks(ctx context.Context) {
	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		logger.Warn("scheduler: failed to list tasks", "error", err)
		return
	}

	now := s.now()
	for i := range tasks {
		task := tasks[i]
		if !task.Due(now) {
			continue
		}
		def := s.def(task.ID)
		if def == nil {
			continue
		}
		if err := s.acquire(task.ID); err != nil {
			if errors.Is(err, domain.ErrSchedulerStopped) {
				return
			}
			logger.Debug("scheduler: task still running", "task", task.ID)
			continue
		}

		go func() {
			defer s.release(task.ID)
			s.execute(ctx, def, &task)
		}()
	}
}

// acquire marks a task active and registers it with the wait group under
// the same lock Stop takes, so Stop either sees the run or refuses it.
func (s *Scheduler) acquire(taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return domain.ErrSchedulerStopped
	}
	if s.active[taskID] {
		return domain.ErrTaskRunning
	}
	s.active[taskID] = true
	s.wg.Add(1)
	return nil
}

func (s *Scheduler) release(taskID string) {
	s.mu.Lock()
	delete(s.active, taskID)
	s.mu.Unlock()
	s.wg.Done()
}

// execute runs one task and persists the outcome. Store failures are logged,
// not returned, so a broken history table never stops snapshot saves.
func (s *Scheduler) execute(ctx context.Context, def *taskDef, task *domain.ScheduledTask) *domain.TaskResult {
	result := &domain.TaskResult{
		RunID:     uuid.NewString(),
		TaskID:    def.id,
		StartedAt: s.now(),
	}
	log := logger.With("task", def.id, "run_id", result.RunID)

	outcome, err := def.run(ctx)
	result.EndedAt = s.now()
	result.ItemsProcessed = outcome.items
	result.Detail = outcome.detail

	task.LastRun = result.StartedAt
	if err != nil {
		result.Error = err.Error()
		task.LastError = result.Error
		task.Failures++
		log.Warn("scheduler: task failed", "error", err, "failures", task.Failures)
	} else {
		result.Success = true
		task.LastError = ""
		task.Failures = 0
		task.LastSuccess = result.EndedAt
		log.Debug("scheduler: task finished", "items", outcome.items, "duration", result.Duration())
	}
	task.NextRun = task.NextRunAfter(result.EndedAt)

	if err := s.store.SaveTask(ctx, task); err != nil {
		log.Warn("scheduler: failed to save task", "error", err)
	}
	if err := s.store.RecordRun(ctx, result); err != nil {
		log.Warn("scheduler: failed to record run", "error", err)
	}
	if err := s.store.PruneRuns(ctx, historyLimit); err != nil {
		log.Warn("scheduler: failed to prune history", "error", err)
	}
	return result
}

// saveSnapshot persists the index if it changed since the last save.
func (s *Scheduler) saveSnapshot(ctx context.Context) (taskOutcome, error) {
	res, err := s.snapshot.SaveIfChanged(ctx)
	if err != nil {
		return taskOutcome{}, err
	}
	if res.Skipped {
		return taskOutcome{detail: "index unchanged"}, nil
	}
	return taskOutcome{
		items:  res.Entries,
		detail: fmt.Sprintf("saved %d entries (%d bytes) to %s", res.Entries, res.Bytes, res.Location),
	}, nil
}

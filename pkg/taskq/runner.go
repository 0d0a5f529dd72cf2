package taskq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/taskq/pkg/logger"
)

// Runner is the single-consumer loop: it picks the best eligible task,
// pre-marks the attempt, dispatches it and deletes it on success.
type Runner struct {
	store    Store
	executor Executor
	policy   RetryPolicy
	notifier Notifier
	runnerID uuid.UUID

	pollInterval time.Duration
	lockFile     string
	logger       *slog.Logger
	now          func() time.Time
}

// NewRunner creates a Runner.
func NewRunner(store Store, executor Executor, opts ...RunnerOption) (*Runner, error) {
	if store == nil {
		return nil, ErrStoreNil
	}
	if executor == nil {
		return nil, ErrExecutorNil
	}

	options := &runnerOptions{
		policy:       DefaultRetryPolicy(),
		pollInterval: DefaultPollInterval,
		lockFile:     DefaultLockFile,
		logger:       slog.Default(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(options)
	}

	id := uuid.New()
	return &Runner{
		store:        store,
		executor:     executor,
		policy:       options.policy,
		notifier:     options.notifier,
		runnerID:     id,
		pollInterval: options.pollInterval,
		lockFile:     options.lockFile,
		logger:       options.logger.With(slog.String("runner_id", id.String())),
		now:          options.now,
	}, nil
}

// ID returns the runner instance id used in log entries.
func (r *Runner) ID() uuid.UUID {
	return r.runnerID
}

// RunExclusive takes the single-instance lock and then runs the loop.
// It fails fast with ErrAlreadyRunning if another runner holds the lock.
func (r *Runner) RunExclusive(ctx context.Context, mode Mode) error {
	if !mode.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}

	lock, err := AcquireLock(r.lockFile)
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			r.logger.WarnContext(ctx, "failed to release lock", logger.Error(err))
		}
	}()

	return r.Run(ctx, mode)
}

// RunFunc returns a function suitable for errgroup.
func (r *Runner) RunFunc(ctx context.Context, mode Mode) func() error {
	return func() error {
		return r.RunExclusive(ctx, mode)
	}
}

// Run polls the store until ctx is done. It never returns because of a
// single task's failure; store errors are logged and retried after the
// poll interval.
func (r *Runner) Run(ctx context.Context, mode Mode) error {
	if !mode.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}

	var wake <-chan struct{}
	if r.notifier != nil {
		wake = r.notifier.Subscribe(ctx)
	}

	r.logger.InfoContext(ctx, "runner started",
		logger.Mode(string(mode)),
		slog.Duration("poll_interval", r.pollInterval))

	waiting := false
	for {
		if ctx.Err() != nil {
			r.logger.InfoContext(ctx, "runner stopped")
			return nil
		}

		found, err := r.RunOnce(ctx, mode)
		if err != nil && ctx.Err() == nil {
			r.logger.ErrorContext(ctx, "runner cycle failed", logger.Error(err))
		}
		if found {
			waiting = false
			continue
		}

		if !waiting && err == nil {
			r.logger.DebugContext(ctx, "waiting for tasks")
			waiting = true
		}

		if !r.sleep(ctx, wake) {
			r.logger.InfoContext(ctx, "runner stopped")
			return nil
		}
	}
}

// RunOnce performs a single pick, pre-mark and dispatch cycle. It reports
// whether a task was dispatched.
func (r *Runner) RunOnce(ctx context.Context, mode Mode) (bool, error) {
	if !mode.Valid() {
		return false, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}

	tx, err := r.store.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	now := r.now()
	task, err := PickTask(ctx, tx, mode, now, r.policy.MaxAttempts)
	if err != nil {
		return false, fmt.Errorf("failed to pick task: %w", err)
	}
	if task == nil {
		return false, nil
	}

	if err := r.policy.Apply(ctx, tx, task, now); err != nil {
		return false, fmt.Errorf("failed to mark task %d as attempted: %w", task.ID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit attempt of task %d: %w", task.ID, err)
	}

	return true, r.dispatch(ctx, task)
}

func (r *Runner) dispatch(ctx context.Context, task *Task) error {
	r.logger.InfoContext(ctx, "running task",
		logger.TaskID(task.ID),
		logger.Priority(task.Priority),
		logger.Attempts(task.Attempts))

	start := time.Now()
	err := r.executor.Execute(ctx, task.ID)
	duration := time.Since(start)

	switch {
	case err == nil:
		r.logger.InfoContext(ctx, "task finished, deleting",
			logger.TaskID(task.ID),
			logger.Duration(duration))
		if err := r.store.DeleteTask(ctx, task.ID); err != nil {
			return fmt.Errorf("failed to delete task %d: %w", task.ID, err)
		}

	case errors.Is(err, ErrTaskNotFound):
		r.logger.WarnContext(ctx, "task vanished before dispatch",
			logger.TaskID(task.ID))

	default:
		r.logger.ErrorContext(ctx, "task failed, will retry",
			logger.TaskID(task.ID),
			logger.Attempts(task.Attempts),
			slog.Time("run_after", task.RunAfter),
			logger.Duration(duration),
			logger.Error(err))
		if r.policy.Dead(task) {
			r.logger.WarnContext(ctx, "task reached the attempt ceiling and will not run again",
				logger.TaskID(task.ID),
				logger.Attempts(task.Attempts))
		}
	}

	return nil
}

func (r *Runner) sleep(ctx context.Context, wake <-chan struct{}) bool {
	t := time.NewTimer(r.pollInterval)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	case <-wake:
		return true
	}
}

package taskq

import (
	"context"
	"time"
)

// RetryPolicy is the fixed-window retry schedule: every dispatch bumps the
// attempt counter and pushes run_after one window ahead, before the handler runs.
type RetryPolicy struct {
	Backoff     time.Duration
	MaxAttempts int
}

// NewRetryPolicy returns a policy, falling back to the defaults for
// non-positive values.
func NewRetryPolicy(backoff time.Duration, maxAttempts int) RetryPolicy {
	if backoff <= 0 {
		backoff = DefaultRetryDelay
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return RetryPolicy{Backoff: backoff, MaxAttempts: maxAttempts}
}

// DefaultRetryPolicy is 60 seconds between attempts and 10 attempts in total.
func DefaultRetryPolicy() RetryPolicy {
	return NewRetryPolicy(DefaultRetryDelay, DefaultMaxAttempts)
}

// Next returns the bookkeeping a dispatch at now leaves behind.
func (p RetryPolicy) Next(task *Task, now time.Time) (attempts int, runAfter time.Time) {
	return task.Attempts + 1, now.Add(p.Backoff)
}

// Apply pre-marks the task as attempted inside tx and mirrors the change on task.
func (p RetryPolicy) Apply(ctx context.Context, tx Tx, task *Task, now time.Time) error {
	attempts, runAfter := p.Next(task, now)
	if err := tx.MarkAttempted(ctx, task.ID, attempts, runAfter); err != nil {
		return err
	}
	task.Attempts = attempts
	task.RunAfter = runAfter
	return nil
}

// Dead reports whether the task exhausted its attempts.
func (p RetryPolicy) Dead(task *Task) bool {
	return task.Attempts >= p.MaxAttempts
}

package taskq

import (
	"context"
	"time"
)

// Store is the persistence contract of the queue.
type Store interface {
	// InsertTask stores a new task and returns its assigned id.
	InsertTask(ctx context.Context, task *Task) (int64, error)

	// GetTask returns the task with the given id or ErrTaskNotFound.
	GetTask(ctx context.Context, id int64) (*Task, error)

	// DeleteTask removes the task. Deleting a missing task is not an error.
	DeleteTask(ctx context.Context, id int64) error

	// Begin opens a transaction for one pick and pre-mark cycle.
	Begin(ctx context.Context) (Tx, error)

	// ListDead returns up to limit tasks that reached maxAttempts, oldest first.
	ListDead(ctx context.Context, maxAttempts, limit int) ([]*Task, error)

	// ResetTask sets attempts to zero and run_after to the given time.
	ResetTask(ctx context.Context, id int64, runAfter time.Time) error

	// Count returns the number of live and dead tasks.
	Count(ctx context.Context, maxAttempts int) (Stats, error)
}

// Tx is a store transaction. Rollback after Commit is a no-op.
type Tx interface {
	// PickTask returns the single best task matching q, locked for the
	// lifetime of the transaction, or nil when none qualifies.
	PickTask(ctx context.Context, q SelectQuery) (*Task, error)

	// MarkAttempted records a dispatch attempt.
	MarkAttempted(ctx context.Context, id int64, attempts int, runAfter time.Time) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Stats is a snapshot of queue size.
type Stats struct {
	Pending int64 `json:"pending"`
	Dead    int64 `json:"dead"`
}

// SelectQuery describes which tasks are eligible and how they are ordered.
type SelectQuery struct {
	Now         time.Time
	MaxAttempts int
	Mode        Mode
}

// Matches reports whether the task is eligible under the query.
func (q SelectQuery) Matches(t *Task) bool {
	return t.RunAfter.Before(q.Now) &&
		t.Attempts < q.MaxAttempts &&
		q.Mode.Accepts(t.Priority)
}

// Less reports whether a should be picked before b:
// higher priority first, then lower id.
func (q SelectQuery) Less(a, b *Task) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	return a.ID < b.ID
}

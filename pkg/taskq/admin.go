package taskq

import (
	"context"
	"log/slog"
	"time"

	"github.com/dmitrymomot/taskq/pkg/logger"
)

// Admin exposes operator actions on dead tasks.
type Admin struct {
	store  Store
	policy RetryPolicy
	logger *slog.Logger
	now    func() time.Time
}

// NewAdmin creates an Admin. The policy decides which tasks count as dead.
func NewAdmin(store Store, policy RetryPolicy, log *slog.Logger) (*Admin, error) {
	if store == nil {
		return nil, ErrStoreNil
	}
	if log == nil {
		log = slog.Default()
	}
	return &Admin{
		store:  store,
		policy: NewRetryPolicy(policy.Backoff, policy.MaxAttempts),
		logger: log,
		now:    time.Now,
	}, nil
}

// Dead lists up to limit dead tasks, oldest first.
func (a *Admin) Dead(ctx context.Context, limit int) ([]*Task, error) {
	if limit <= 0 {
		limit = 100
	}
	return a.store.ListDead(ctx, a.policy.MaxAttempts, limit)
}

// Revive makes a task eligible again with a fresh attempt budget.
func (a *Admin) Revive(ctx context.Context, id int64) error {
	if err := a.store.ResetTask(ctx, id, a.now()); err != nil {
		return err
	}
	a.logger.InfoContext(ctx, "task revived", logger.TaskID(id))
	return nil
}

// Stats counts live and dead tasks.
func (a *Admin) Stats(ctx context.Context) (Stats, error) {
	return a.store.Count(ctx, a.policy.MaxAttempts)
}

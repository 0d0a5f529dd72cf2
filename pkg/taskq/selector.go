package taskq

import (
	"context"
	"time"
)

// PickTask returns the best eligible task for mode inside tx, or nil when
// nothing qualifies. The row stays locked until tx ends.
func PickTask(ctx context.Context, tx Tx, mode Mode, now time.Time, maxAttempts int) (*Task, error) {
	if !mode.Valid() {
		return nil, ErrInvalidMode
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	return tx.PickTask(ctx, SelectQuery{
		Now:         now,
		MaxAttempts: maxAttempts,
		Mode:        mode,
	})
}

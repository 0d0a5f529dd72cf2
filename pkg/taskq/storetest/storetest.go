// Package storetest checks a taskq.Store implementation against the
// behaviour the runner relies on.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/taskq/pkg/taskq"
)

// Factory returns an empty store. It is called once per subtest.
type Factory func(t *testing.T) taskq.Store

var base = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

// Run executes the store contract tests. Subtests run sequentially so
// factories may share one database and truncate it between calls.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	t.Run("insert assigns increasing ids", func(t *testing.T) {
		store := newStore(t)
		first := insert(t, store, 0, 0, base)
		second := insert(t, store, 0, 0, base)
		assert.Greater(t, second, first)
	})

	t.Run("get round trips fields", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		payload, err := taskq.EncodePayload("mailer.send", taskq.Data{"to": "a@b.c"})
		require.NoError(t, err)

		id, err := store.InsertTask(ctx, &taskq.Task{
			AddedAt:  base,
			RunAfter: base.Add(time.Minute),
			Priority: -3,
			Attempts: 2,
			Payload:  payload,
		})
		require.NoError(t, err)

		task, err := store.GetTask(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, id, task.ID)
		assert.True(t, base.Equal(task.AddedAt), "added_at %s", task.AddedAt)
		assert.True(t, base.Add(time.Minute).Equal(task.RunAfter), "run_after %s", task.RunAfter)
		assert.Equal(t, -3, task.Priority)
		assert.Equal(t, 2, task.Attempts)

		p, err := task.DecodePayload()
		require.NoError(t, err)
		assert.Equal(t, "mailer.send", p.Action)
		assert.Equal(t, "a@b.c", p.Data["to"])
	})

	t.Run("get missing task", func(t *testing.T) {
		store := newStore(t)
		_, err := store.GetTask(context.Background(), 987654)
		assert.ErrorIs(t, err, taskq.ErrTaskNotFound)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		id := insert(t, store, 0, 0, base)

		require.NoError(t, store.DeleteTask(ctx, id))
		require.NoError(t, store.DeleteTask(ctx, id))

		_, err := store.GetTask(ctx, id)
		assert.ErrorIs(t, err, taskq.ErrTaskNotFound)
	})

	t.Run("pick order and filters", func(t *testing.T) {
		store := newStore(t)
		low := insert(t, store, -5, 0, base)
		zero := insert(t, store, 0, 0, base)
		highA := insert(t, store, 7, 0, base)
		highB := insert(t, store, 7, 0, base)
		insert(t, store, 9, 0, base.Add(time.Hour))
		insert(t, store, 9, taskq.DefaultMaxAttempts, base)

		now := base.Add(time.Second)
		assert.Equal(t, highA, pickID(t, store, taskq.ModeAll, now))
		assert.Equal(t, highA, pickID(t, store, taskq.ModeHigh, now))
		assert.Equal(t, low, pickID(t, store, taskq.ModeLow, now))

		for _, id := range []int64{highA, highB} {
			require.NoError(t, store.DeleteTask(context.Background(), id))
		}
		assert.Equal(t, zero, pickID(t, store, taskq.ModeHigh, now))
	})

	t.Run("run_after is strict", func(t *testing.T) {
		store := newStore(t)
		insert(t, store, 0, 0, base)
		assert.Zero(t, pickID(t, store, taskq.ModeAll, base))
		assert.NotZero(t, pickID(t, store, taskq.ModeAll, base.Add(time.Millisecond)))
	})

	t.Run("mark is visible after commit only", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		id := insert(t, store, 0, 0, base)
		next := base.Add(time.Minute)

		tx, err := store.Begin(ctx)
		require.NoError(t, err)
		require.NoError(t, tx.MarkAttempted(ctx, id, 1, next))
		require.NoError(t, tx.Rollback(ctx))

		task, err := store.GetTask(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 0, task.Attempts)

		tx, err = store.Begin(ctx)
		require.NoError(t, err)
		require.NoError(t, tx.MarkAttempted(ctx, id, 1, next))
		require.NoError(t, tx.Commit(ctx))
		require.NoError(t, tx.Rollback(ctx))

		task, err = store.GetTask(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 1, task.Attempts)
		assert.True(t, next.Equal(task.RunAfter))
	})

	t.Run("mark missing task", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		tx, err := store.Begin(ctx)
		require.NoError(t, err)
		defer tx.Rollback(ctx)

		assert.ErrorIs(t, tx.MarkAttempted(ctx, 424242, 1, base), taskq.ErrTaskNotFound)
	})

	t.Run("dead tasks, stats and reset", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		deadA := insert(t, store, 0, taskq.DefaultMaxAttempts, base)
		insert(t, store, 0, 1, base)
		deadB := insert(t, store, -1, taskq.DefaultMaxAttempts+2, base)

		dead, err := store.ListDead(ctx, taskq.DefaultMaxAttempts, 10)
		require.NoError(t, err)
		require.Len(t, dead, 2)
		assert.Equal(t, deadA, dead[0].ID)
		assert.Equal(t, deadB, dead[1].ID)

		limited, err := store.ListDead(ctx, taskq.DefaultMaxAttempts, 1)
		require.NoError(t, err)
		assert.Len(t, limited, 1)

		stats, err := store.Count(ctx, taskq.DefaultMaxAttempts)
		require.NoError(t, err)
		assert.Equal(t, taskq.Stats{Pending: 1, Dead: 2}, stats)

		require.NoError(t, store.ResetTask(ctx, deadA, base))
		task, err := store.GetTask(ctx, deadA)
		require.NoError(t, err)
		assert.Equal(t, 0, task.Attempts)
		assert.True(t, base.Equal(task.RunAfter))

		assert.ErrorIs(t, store.ResetTask(ctx, 999999, base), taskq.ErrTaskNotFound)
	})

	t.Run("runner cycle", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		id := insert(t, store, 0, 0, base)

		policy := taskq.DefaultRetryPolicy()
		now := base.Add(time.Second)

		tx, err := store.Begin(ctx)
		require.NoError(t, err)
		task, err := taskq.PickTask(ctx, tx, taskq.ModeAll, now, policy.MaxAttempts)
		require.NoError(t, err)
		require.NotNil(t, task)
		require.NoError(t, policy.Apply(ctx, tx, task, now))
		require.NoError(t, tx.Commit(ctx))

		assert.Zero(t, pickID(t, store, taskq.ModeAll, now.Add(policy.Backoff)))
		assert.Equal(t, id, pickID(t, store, taskq.ModeAll, now.Add(policy.Backoff+time.Millisecond)))
	})
}

func insert(t *testing.T, store taskq.Store, priority, attempts int, runAfter time.Time) int64 {
	t.Helper()

	payload, err := taskq.EncodePayload("test.run", nil)
	require.NoError(t, err)

	id, err := store.InsertTask(context.Background(), &taskq.Task{
		AddedAt:  base,
		RunAfter: runAfter,
		Priority: priority,
		Attempts: attempts,
		Payload:  payload,
	})
	require.NoError(t, err)
	return id
}

func pickID(t *testing.T, store taskq.Store, mode taskq.Mode, now time.Time) int64 {
	t.Helper()

	ctx := context.Background()
	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)

	task, err := taskq.PickTask(ctx, tx, mode, now, taskq.DefaultMaxAttempts)
	require.NoError(t, err)
	if task == nil {
		return 0
	}
	return task.ID
}

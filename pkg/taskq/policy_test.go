package taskq_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/taskq/pkg/taskq"
)

func TestRetryPolicy(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		p := taskq.DefaultRetryPolicy()
		assert.Equal(t, time.Minute, p.Backoff)
		assert.Equal(t, 10, p.MaxAttempts)

		p = taskq.NewRetryPolicy(0, -1)
		assert.Equal(t, taskq.DefaultRetryPolicy(), p)
	})

	t.Run("next increments by one and applies a fixed window", func(t *testing.T) {
		t.Parallel()

		p := taskq.DefaultRetryPolicy()
		for attempts := 0; attempts < 10; attempts++ {
			n, runAfter := p.Next(&taskq.Task{Attempts: attempts}, baseTime)
			assert.Equal(t, attempts+1, n)
			assert.Equal(t, baseTime.Add(60*time.Second), runAfter)
		}
	})

	t.Run("dead at the ceiling", func(t *testing.T) {
		t.Parallel()

		p := taskq.DefaultRetryPolicy()
		assert.False(t, p.Dead(&taskq.Task{Attempts: 9}))
		assert.True(t, p.Dead(&taskq.Task{Attempts: 10}))
		assert.True(t, p.Dead(&taskq.Task{Attempts: 11}))
	})

	t.Run("apply writes through the transaction", func(t *testing.T) {
		t.Parallel()

		storage := taskq.NewMemoryStorage()
		ctx := context.Background()
		id := insertTask(t, storage, 0, 2, baseTime)

		tx, err := storage.Begin(ctx)
		require.NoError(t, err)
		task, err := taskq.PickTask(ctx, tx, taskq.ModeAll, baseTime.Add(time.Second), 10)
		require.NoError(t, err)
		require.NotNil(t, task)

		now := baseTime.Add(time.Second)
		require.NoError(t, taskq.DefaultRetryPolicy().Apply(ctx, tx, task, now))
		assert.Equal(t, 3, task.Attempts)
		assert.Equal(t, now.Add(time.Minute), task.RunAfter)
		require.NoError(t, tx.Commit(ctx))

		stored, err := storage.GetTask(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 3, stored.Attempts)
		assert.Equal(t, now.Add(time.Minute), stored.RunAfter)
	})
}

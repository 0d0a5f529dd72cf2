package taskq_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/taskq/pkg/taskq"
)

func TestParseMode(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"all", "lo", "hi"} {
		m, err := taskq.ParseMode(s)
		require.NoError(t, err)
		assert.Equal(t, s, m.String())
	}

	for _, s := range []string{"", "ALL", "low", "high", "*"} {
		_, err := taskq.ParseMode(s)
		assert.ErrorIs(t, err, taskq.ErrInvalidMode, "mode %q", s)
	}
}

func TestPickTask(t *testing.T) {
	t.Parallel()

	now := baseTime.Add(time.Second)

	t.Run("returns nil on empty store", func(t *testing.T) {
		t.Parallel()

		storage := taskq.NewMemoryStorage()
		assert.Nil(t, pick(t, storage, taskq.ModeAll, now))
	})

	t.Run("invalid mode", func(t *testing.T) {
		t.Parallel()

		storage := taskq.NewMemoryStorage()
		ctx := context.Background()
		tx, err := storage.Begin(ctx)
		require.NoError(t, err)
		defer tx.Rollback(ctx)

		_, err = taskq.PickTask(ctx, tx, taskq.Mode("urgent"), now, 10)
		assert.ErrorIs(t, err, taskq.ErrInvalidMode)
	})

	t.Run("highest priority first", func(t *testing.T) {
		t.Parallel()

		storage := taskq.NewMemoryStorage()
		insertTask(t, storage, 1, 0, baseTime)
		high := insertTask(t, storage, 7, 0, baseTime)
		insertTask(t, storage, -4, 0, baseTime)

		got := pick(t, storage, taskq.ModeAll, now)
		require.NotNil(t, got)
		assert.Equal(t, high, got.ID)
	})

	t.Run("equal priority picks the smaller id", func(t *testing.T) {
		t.Parallel()

		storage := taskq.NewMemoryStorage()
		first := insertTask(t, storage, 2, 0, baseTime)
		insertTask(t, storage, 2, 0, baseTime.Add(-time.Hour))

		for range 5 {
			got := pick(t, storage, taskq.ModeAll, now)
			require.NotNil(t, got)
			assert.Equal(t, first, got.ID)
		}
	})

	t.Run("run_after must be strictly in the past", func(t *testing.T) {
		t.Parallel()

		storage := taskq.NewMemoryStorage()
		insertTask(t, storage, 0, 0, now)
		insertTask(t, storage, 0, 0, now.Add(time.Minute))
		assert.Nil(t, pick(t, storage, taskq.ModeAll, now))

		got := pick(t, storage, taskq.ModeAll, now.Add(time.Nanosecond))
		require.NotNil(t, got)
	})

	t.Run("dead tasks are never picked", func(t *testing.T) {
		t.Parallel()

		storage := taskq.NewMemoryStorage()
		insertTask(t, storage, 100, 10, baseTime)
		insertTask(t, storage, -100, 11, baseTime)

		for _, mode := range []taskq.Mode{taskq.ModeAll, taskq.ModeHigh, taskq.ModeLow} {
			assert.Nil(t, pick(t, storage, mode, now), "mode %s", mode)
		}
	})

	t.Run("mode filters", func(t *testing.T) {
		t.Parallel()

		storage := taskq.NewMemoryStorage()
		hi := insertTask(t, storage, 5, 0, baseTime)
		lo := insertTask(t, storage, -1, 0, baseTime)

		got := pick(t, storage, taskq.ModeHigh, now)
		require.NotNil(t, got)
		assert.Equal(t, hi, got.ID)

		got = pick(t, storage, taskq.ModeLow, now)
		require.NotNil(t, got)
		assert.Equal(t, lo, got.ID)

		got = pick(t, storage, taskq.ModeAll, now)
		require.NotNil(t, got)
		assert.Equal(t, hi, got.ID)
	})

	t.Run("zero priority belongs to hi", func(t *testing.T) {
		t.Parallel()

		storage := taskq.NewMemoryStorage()
		zero := insertTask(t, storage, 0, 0, baseTime)

		assert.Nil(t, pick(t, storage, taskq.ModeLow, now))
		got := pick(t, storage, taskq.ModeHigh, now)
		require.NotNil(t, got)
		assert.Equal(t, zero, got.ID)
	})

	t.Run("returned tasks always satisfy the mode", func(t *testing.T) {
		t.Parallel()

		storage := taskq.NewMemoryStorage()
		for p := -5; p <= 5; p++ {
			insertTask(t, storage, p, 0, baseTime)
		}

		for _, mode := range []taskq.Mode{taskq.ModeHigh, taskq.ModeLow} {
			seen := 0
			for {
				got := pick(t, storage, mode, now)
				if got == nil {
					break
				}
				assert.True(t, mode.Accepts(got.Priority), "mode %s got priority %d", mode, got.Priority)
				require.NoError(t, storage.DeleteTask(context.Background(), got.ID))
				seen++
			}
			if mode == taskq.ModeHigh {
				assert.Equal(t, 6, seen)
			} else {
				assert.Equal(t, 5, seen)
			}
		}
		assert.Equal(t, 0, storage.Len())
	})
}

func TestSelectQuery(t *testing.T) {
	t.Parallel()

	q := taskq.SelectQuery{Now: baseTime, MaxAttempts: 10, Mode: taskq.ModeAll}

	assert.True(t, q.Matches(&taskq.Task{RunAfter: baseTime.Add(-time.Second), Attempts: 9}))
	assert.False(t, q.Matches(&taskq.Task{RunAfter: baseTime, Attempts: 0}))
	assert.False(t, q.Matches(&taskq.Task{RunAfter: baseTime.Add(-time.Second), Attempts: 10}))

	assert.True(t, q.Less(&taskq.Task{ID: 9, Priority: 2}, &taskq.Task{ID: 1, Priority: 1}))
	assert.True(t, q.Less(&taskq.Task{ID: 1, Priority: 1}, &taskq.Task{ID: 2, Priority: 1}))
	assert.False(t, q.Less(&taskq.Task{ID: 2, Priority: 1}, &taskq.Task{ID: 1, Priority: 1}))
}

package taskq_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/taskq/pkg/logger"
	"github.com/dmitrymomot/taskq/pkg/taskq"
)

func TestAdmin(t *testing.T) {
	t.Parallel()

	t.Run("nil store", func(t *testing.T) {
		t.Parallel()

		_, err := taskq.NewAdmin(nil, taskq.DefaultRetryPolicy(), nil)
		assert.ErrorIs(t, err, taskq.ErrStoreNil)
	})

	t.Run("dead tasks and stats", func(t *testing.T) {
		t.Parallel()

		storage := taskq.NewMemoryStorage()
		dead := insertTask(t, storage, 0, 10, baseTime)
		insertTask(t, storage, 0, 3, baseTime)
		insertTask(t, storage, -1, 0, baseTime)

		admin, err := taskq.NewAdmin(storage, taskq.DefaultRetryPolicy(), logger.Discard())
		require.NoError(t, err)

		tasks, err := admin.Dead(context.Background(), 0)
		require.NoError(t, err)
		require.Len(t, tasks, 1)
		assert.Equal(t, dead, tasks[0].ID)

		stats, err := admin.Stats(context.Background())
		require.NoError(t, err)
		assert.Equal(t, taskq.Stats{Pending: 2, Dead: 1}, stats)
	})

	t.Run("custom ceiling", func(t *testing.T) {
		t.Parallel()

		storage := taskq.NewMemoryStorage()
		insertTask(t, storage, 0, 3, baseTime)

		admin, err := taskq.NewAdmin(storage, taskq.NewRetryPolicy(time.Minute, 3), logger.Discard())
		require.NoError(t, err)

		tasks, err := admin.Dead(context.Background(), 10)
		require.NoError(t, err)
		assert.Len(t, tasks, 1)
	})

	t.Run("revive makes a dead task eligible", func(t *testing.T) {
		t.Parallel()

		storage := taskq.NewMemoryStorage()
		id := insertTask(t, storage, 0, 10, baseTime)
		require.Nil(t, pick(t, storage, taskq.ModeAll, time.Now()))

		admin, err := taskq.NewAdmin(storage, taskq.DefaultRetryPolicy(), logger.Discard())
		require.NoError(t, err)
		require.NoError(t, admin.Revive(context.Background(), id))

		task, err := storage.GetTask(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, 0, task.Attempts)

		picked := pick(t, storage, taskq.ModeAll, time.Now().Add(time.Second))
		require.NotNil(t, picked)
		assert.Equal(t, id, picked.ID)
	})

	t.Run("revive unknown task", func(t *testing.T) {
		t.Parallel()

		admin, err := taskq.NewAdmin(taskq.NewMemoryStorage(), taskq.DefaultRetryPolicy(), logger.Discard())
		require.NoError(t, err)
		assert.ErrorIs(t, admin.Revive(context.Background(), 42), taskq.ErrTaskNotFound)
	})

	t.Run("store errors pass through", func(t *testing.T) {
		t.Parallel()

		mockStore := new(MockStore)
		defer mockStore.AssertExpectations(t)
		mockStore.On("ListDead", mock.Anything, 10, 5).Return(nil, errors.New("boom"))

		admin, err := taskq.NewAdmin(mockStore, taskq.DefaultRetryPolicy(), logger.Discard())
		require.NoError(t, err)

		_, err = admin.Dead(context.Background(), 5)
		assert.EqualError(t, err, "boom")
	})
}

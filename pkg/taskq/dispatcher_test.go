package taskq_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/taskq/pkg/logger"
	"github.com/dmitrymomot/taskq/pkg/taskq"
)

func newDispatcher(t *testing.T, store taskq.Store, r *taskq.Registry) *taskq.Dispatcher {
	t.Helper()

	d, err := taskq.NewDispatcher(store, r, taskq.WithDispatcherLogger(logger.Discard()))
	require.NoError(t, err)
	return d
}

func addTask(t *testing.T, store taskq.Store, action string, data taskq.Data, opts ...taskq.AddOption) int64 {
	t.Helper()

	e, err := taskq.NewEnqueuer(store,
		taskq.WithEnqueuerClock(fixedClock(baseTime)),
		taskq.WithEnqueuerLogger(logger.Discard()))
	require.NoError(t, err)

	id, err := e.Add(context.Background(), action, data, opts...)
	require.NoError(t, err)
	return id
}

func TestNewDispatcher(t *testing.T) {
	t.Parallel()

	_, err := taskq.NewDispatcher(nil, taskq.NewRegistry())
	assert.ErrorIs(t, err, taskq.ErrStoreNil)

	_, err = taskq.NewDispatcher(taskq.NewMemoryStorage(), nil)
	assert.ErrorIs(t, err, taskq.ErrRegistryNil)
}

func TestDispatcher_ExecuteTask(t *testing.T) {
	t.Parallel()

	t.Run("invokes the method with data", func(t *testing.T) {
		t.Parallel()

		storage := taskq.NewMemoryStorage()
		r := taskq.NewRegistry()

		var got taskq.Data
		require.NoError(t, r.RegisterFunc("mailer.send", func(ctx context.Context, data taskq.Data) error {
			got = data
			return nil
		}))

		id := addTask(t, storage, "mailer.send", taskq.Data{"to": "a@b.com"})
		err := newDispatcher(t, storage, r).ExecuteTask(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, taskq.Data{"to": "a@b.com"}, got)

		// the dispatcher never deletes
		assert.Equal(t, 1, storage.Len())
	})

	t.Run("missing task", func(t *testing.T) {
		t.Parallel()

		storage := taskq.NewMemoryStorage()
		err := newDispatcher(t, storage, taskq.NewRegistry()).ExecuteTask(context.Background(), 42)
		assert.ErrorIs(t, err, taskq.ErrTaskNotFound)
	})

	t.Run("unknown handler leaves the task untouched", func(t *testing.T) {
		t.Parallel()

		storage := taskq.NewMemoryStorage()
		id := addTask(t, storage, "billing.charge", nil)

		err := newDispatcher(t, storage, taskq.NewRegistry()).ExecuteTask(context.Background(), id)
		assert.ErrorIs(t, err, taskq.ErrHandlerNotFound)

		task, err := storage.GetTask(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, 0, task.Attempts)
	})

	t.Run("unknown method", func(t *testing.T) {
		t.Parallel()

		storage := taskq.NewMemoryStorage()
		r := taskq.NewRegistry()
		require.NoError(t, r.RegisterFunc("mailer.send", func(ctx context.Context, data taskq.Data) error { return nil }))
		id := addTask(t, storage, "mailer.purge", nil)

		err := newDispatcher(t, storage, r).ExecuteTask(context.Background(), id)
		assert.ErrorIs(t, err, taskq.ErrHandlerNotFound)
	})

	t.Run("action without method", func(t *testing.T) {
		t.Parallel()

		storage := taskq.NewMemoryStorage()
		payload := []byte(`{"action":"mailer","data":{}}`)
		id, err := storage.InsertTask(context.Background(), &taskq.Task{AddedAt: baseTime, RunAfter: baseTime, Payload: payload})
		require.NoError(t, err)

		err = newDispatcher(t, storage, taskq.NewRegistry()).ExecuteTask(context.Background(), id)
		assert.ErrorIs(t, err, taskq.ErrHandlerNotFound)
		assert.ErrorIs(t, err, taskq.ErrInvalidAction)
	})

	t.Run("corrupt payload", func(t *testing.T) {
		t.Parallel()

		storage := taskq.NewMemoryStorage()
		id, err := storage.InsertTask(context.Background(), &taskq.Task{AddedAt: baseTime, RunAfter: baseTime, Payload: []byte("a:1:{}")})
		require.NoError(t, err)

		err = newDispatcher(t, storage, taskq.NewRegistry()).ExecuteTask(context.Background(), id)
		assert.ErrorIs(t, err, taskq.ErrPayloadDecode)
	})

	t.Run("handler error", func(t *testing.T) {
		t.Parallel()

		storage := taskq.NewMemoryStorage()
		r := taskq.NewRegistry()
		handlerErr := errors.New("smtp down")
		require.NoError(t, r.RegisterFunc("mailer.send", func(ctx context.Context, data taskq.Data) error {
			return handlerErr
		}))
		id := addTask(t, storage, "mailer.send", nil)

		err := newDispatcher(t, storage, r).ExecuteTask(context.Background(), id)
		assert.ErrorIs(t, err, taskq.ErrHandlerFailed)
		assert.ErrorIs(t, err, handlerErr)
	})
}

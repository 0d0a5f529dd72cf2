package httpapi_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/taskq/pkg/logger"
	"github.com/dmitrymomot/taskq/pkg/taskq"
	"github.com/dmitrymomot/taskq/pkg/taskq/httpapi"
)

type fixture struct {
	store   *taskq.MemoryStorage
	handler http.Handler
}

func newFixture(t *testing.T, checks ...httpapi.HealthFunc) fixture {
	t.Helper()

	store := taskq.NewMemoryStorage()
	log := logger.Discard()

	e, err := taskq.NewEnqueuer(store, taskq.WithEnqueuerLogger(log))
	require.NoError(t, err)
	admin, err := taskq.NewAdmin(store, taskq.DefaultRetryPolicy(), log)
	require.NoError(t, err)

	return fixture{
		store: store,
		handler: httpapi.Router(httpapi.Options{
			Enqueuer: e,
			Admin:    admin,
			Checks:   checks,
			Logger:   log,
		}),
	}
}

func (f fixture) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, httpapi.Response) {
	t.Helper()

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)

	var resp httpapi.Response
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

func TestAddTask(t *testing.T) {
	t.Parallel()

	t.Run("created", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		w, resp := f.do(t, http.MethodPost, "/tasks",
			`{"action":"mailer.send","data":{"to":"a@b.c"},"priority":-2,"delay":"1m"}`)

		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		assert.Nil(t, resp.Error)
		assert.Equal(t, map[string]any{"id": float64(1)}, resp.Data)

		task, err := f.store.GetTask(context.Background(), 1)
		require.NoError(t, err)
		assert.Equal(t, -2, task.Priority)
		assert.Equal(t, 0, task.Attempts)

		p, err := task.DecodePayload()
		require.NoError(t, err)
		assert.Equal(t, "mailer.send", p.Action)
		assert.Equal(t, "a@b.c", p.Data["to"])
	})

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"action":`},
		{"missing action", `{"data":{}}`},
		{"action without method", `{"action":"mailer"}`},
		{"invalid delay", `{"action":"mailer.send","delay":"soon"}`},
		{"negative delay", `{"action":"mailer.send","delay":"-1s"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			w, resp := f.do(t, http.MethodPost, "/tasks", tt.body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			require.NotNil(t, resp.Error)
			assert.Equal(t, "validation_error", resp.Error.Code)
			assert.Equal(t, 0, f.store.Len())
		})
	}
}

func TestDeadAndRevive(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	payload, err := taskq.EncodePayload("mailer.send", nil)
	require.NoError(t, err)
	id, err := f.store.InsertTask(ctx, &taskq.Task{Attempts: taskq.DefaultMaxAttempts, Payload: payload})
	require.NoError(t, err)
	_, err = f.store.InsertTask(ctx, &taskq.Task{Attempts: 1, Payload: payload})
	require.NoError(t, err)

	w, resp := f.do(t, http.MethodGet, "/tasks/dead", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), resp.Meta["count"])

	items, ok := resp.Data.([]any)
	require.True(t, ok)
	require.Len(t, items, 1)
	item := items[0].(map[string]any)
	assert.Equal(t, float64(id), item["id"])
	assert.Equal(t, "mailer.send", item["payload"].(map[string]any)["action"])

	w, resp = f.do(t, http.MethodGet, "/stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{"pending": float64(1), "dead": float64(1)}, resp.Data)

	w, _ = f.do(t, http.MethodPost, "/tasks/1/revive", "")
	require.Equal(t, http.StatusOK, w.Code)

	task, err := f.store.GetTask(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 0, task.Attempts)

	w, resp = f.do(t, http.MethodGet, "/tasks/dead?limit=5", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), resp.Meta["count"])
}

func TestRevive_Errors(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	w, resp := f.do(t, http.MethodPost, "/tasks/42/revive", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "not_found", resp.Error.Code)

	w, _ = f.do(t, http.MethodPost, "/tasks/abc/revive", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = f.do(t, http.MethodGet, "/tasks/dead?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

type failingAdmin struct{}

func (failingAdmin) Dead(context.Context, int) ([]*taskq.Task, error) {
	return nil, errors.New("connection reset")
}
func (failingAdmin) Revive(context.Context, int64) error { return errors.New("connection reset") }
func (failingAdmin) Stats(context.Context) (taskq.Stats, error) {
	return taskq.Stats{}, errors.New("connection reset")
}

func TestInternalErrors(t *testing.T) {
	t.Parallel()

	h := httpapi.Router(httpapi.Options{
		Enqueuer: nil,
		Admin:    failingAdmin{},
		Logger:   logger.Discard(),
	})

	for _, path := range []string{"/stats", "/tasks/dead"} {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code, path)
		assert.NotContains(t, w.Body.String(), "connection reset", path)
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	t.Run("live", func(t *testing.T) {
		t.Parallel()

		w, _ := newFixture(t, func(context.Context) error { return errors.New("down") }).
			do(t, http.MethodGet, "/health/live", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "ALIVE", w.Body.String())
	})

	t.Run("ready", func(t *testing.T) {
		t.Parallel()

		w, _ := newFixture(t, func(context.Context) error { return nil }).
			do(t, http.MethodGet, "/health/ready", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "READY", w.Body.String())
	})

	t.Run("not ready", func(t *testing.T) {
		t.Parallel()

		w, _ := newFixture(t,
			func(context.Context) error { return nil },
			func(context.Context) error { return errors.New("down") }).
			do(t, http.MethodGet, "/health/ready", "")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, "NOT_READY", w.Body.String())
	})
}

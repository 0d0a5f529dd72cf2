package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/taskq/pkg/logger"
	"github.com/dmitrymomot/taskq/pkg/taskq"
)

const maxBodySize = 1 << 20

// Enqueuer adds tasks.
type Enqueuer interface {
	Add(ctx context.Context, action string, data taskq.Data, opts ...taskq.AddOption) (int64, error)
}

// Admin inspects and revives tasks.
type Admin interface {
	Dead(ctx context.Context, limit int) ([]*taskq.Task, error)
	Revive(ctx context.Context, id int64) error
	Stats(ctx context.Context) (taskq.Stats, error)
}

// HealthFunc reports whether a dependency is usable.
type HealthFunc func(context.Context) error

// Options configures the router. Enqueuer and Admin are required.
type Options struct {
	Enqueuer Enqueuer
	Admin    Admin
	Checks   []HealthFunc
	Logger   *slog.Logger
}

// AddRequest is the body of POST /tasks.
type AddRequest struct {
	Action   string     `json:"action"`
	Data     taskq.Data `json:"data,omitempty"`
	Priority int        `json:"priority,omitempty"`
	Delay    string     `json:"delay,omitempty"`
}

// TaskView is a task as rendered by the API, with the payload inlined.
type TaskView struct {
	ID       int64           `json:"id"`
	AddedAt  time.Time       `json:"added_at"`
	RunAfter time.Time       `json:"run_after"`
	Priority int             `json:"priority"`
	Attempts int             `json:"attempts"`
	Payload  json.RawMessage `json:"payload"`
}

func newTaskView(t *taskq.Task) TaskView {
	payload := json.RawMessage(t.Payload)
	if !json.Valid(payload) {
		payload = json.RawMessage("null")
	}
	return TaskView{
		ID:       t.ID,
		AddedAt:  t.AddedAt,
		RunAfter: t.RunAfter,
		Priority: t.Priority,
		Attempts: t.Attempts,
		Payload:  payload,
	}
}

type api struct {
	enqueuer Enqueuer
	admin    Admin
	checks   []HealthFunc
	logger   *slog.Logger
}

// Router builds the admin HTTP API.
func Router(opts Options) chi.Router {
	a := &api{
		enqueuer: opts.Enqueuer,
		admin:    opts.Admin,
		checks:   opts.Checks,
		logger:   opts.Logger,
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(a.logRequests)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", a.live)
		r.Get("/ready", a.ready)
	})

	r.Route("/tasks", func(r chi.Router) {
		r.Post("/", a.addTask)
		r.Get("/dead", a.deadTasks)
		r.Post("/{id}/revive", a.reviveTask)
	})

	r.Get("/stats", a.stats)

	return r
}

func (a *api) addTask(w http.ResponseWriter, r *http.Request) {
	var req AddRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err := dec.Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: %w: %w", ErrBadRequest, ErrInvalidBody, err))
		return
	}

	opts := []taskq.AddOption{taskq.WithPriority(req.Priority)}
	if req.Delay != "" {
		d, err := time.ParseDuration(req.Delay)
		if err != nil || d < 0 {
			writeError(w, fmt.Errorf("%w: invalid delay %q", ErrBadRequest, req.Delay))
			return
		}
		opts = append(opts, taskq.WithDelay(d))
	}

	id, err := a.enqueuer.Add(r.Context(), req.Action, req.Data, opts...)
	if err != nil {
		a.fail(r, w, err)
		return
	}

	writeJSON(w, http.StatusCreated, Response{Data: map[string]int64{"id": id}})
}

func (a *api) deadTasks(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeError(w, fmt.Errorf("%w: invalid limit %q", ErrBadRequest, s))
			return
		}
		limit = n
	}

	tasks, err := a.admin.Dead(r.Context(), limit)
	if err != nil {
		a.fail(r, w, err)
		return
	}
	views := make([]TaskView, 0, len(tasks))
	for _, t := range tasks {
		views = append(views, newTaskView(t))
	}

	writeJSON(w, http.StatusOK, Response{
		Data: views,
		Meta: map[string]any{"count": len(views)},
	})
}

func (a *api) reviveTask(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, fmt.Errorf("%w: %w", ErrBadRequest, ErrInvalidID))
		return
	}

	if err := a.admin.Revive(r.Context(), id); err != nil {
		a.fail(r, w, err)
		return
	}

	writeJSON(w, http.StatusOK, Response{Data: map[string]int64{"id": id}})
}

func (a *api) stats(w http.ResponseWriter, r *http.Request) {
	s, err := a.admin.Stats(r.Context())
	if err != nil {
		a.fail(r, w, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Data: s})
}

func (a *api) live(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ALIVE"))
}

func (a *api) ready(w http.ResponseWriter, r *http.Request) {
	for _, check := range a.checks {
		if err := check(r.Context()); err != nil {
			a.logger.ErrorContext(r.Context(), "readiness check failed", logger.Error(err))
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("NOT_READY"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("READY"))
}

func (a *api) fail(r *http.Request, w http.ResponseWriter, err error) {
	if status, _ := errorStatus(err); status == http.StatusInternalServerError {
		a.logger.ErrorContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path),
			logger.Error(err))
	}
	writeError(w, err)
}

func (a *api) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		a.logger.DebugContext(r.Context(), "http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			logger.Duration(time.Since(start)))
	})
}

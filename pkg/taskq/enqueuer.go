package taskq

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dmitrymomot/taskq/pkg/logger"
)

// Enqueuer admits new tasks into the store.
type Enqueuer struct {
	store    Store
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewEnqueuer creates an Enqueuer backed by store.
func NewEnqueuer(store Store, opts ...EnqueuerOption) (*Enqueuer, error) {
	if store == nil {
		return nil, ErrStoreNil
	}

	options := &enqueuerOptions{
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(options)
	}

	return &Enqueuer{
		store:    store,
		notifier: options.notifier,
		logger:   options.logger,
		now:      options.now,
	}, nil
}

// Add enqueues action with data and returns the new task id.
// The action must look like "<handler>.<method>".
func (e *Enqueuer) Add(ctx context.Context, action string, data Data, opts ...AddOption) (int64, error) {
	if _, _, err := SplitAction(action); err != nil {
		return 0, err
	}

	options := &addOptions{}
	for _, opt := range opts {
		opt(options)
	}

	payload, err := EncodePayload(action, data)
	if err != nil {
		return 0, err
	}

	now := e.now()
	task := &Task{
		AddedAt:  now,
		RunAfter: now.Add(options.delay),
		Priority: options.priority,
		Attempts: 0,
		Payload:  payload,
	}

	id, err := e.store.InsertTask(ctx, task)
	if err != nil {
		return 0, errors.Join(ErrTaskCreate, err)
	}

	e.logger.DebugContext(ctx, "task added",
		logger.TaskID(id),
		logger.Action(action),
		logger.Priority(options.priority),
		summarizeData(data))

	if e.notifier != nil {
		if err := e.notifier.Notify(ctx); err != nil {
			e.logger.WarnContext(ctx, "failed to notify runner",
				logger.TaskID(id),
				logger.Error(err))
		}
	}

	return id, nil
}

// summarizeData renders data compactly for the admission log entry.
func summarizeData(data Data) slog.Attr {
	switch len(data) {
	case 0:
		return slog.Bool("no_data", true)
	case 1:
		for k, v := range data {
			return slog.Any(k, v)
		}
	}
	return slog.Any("data", map[string]any(data))
}

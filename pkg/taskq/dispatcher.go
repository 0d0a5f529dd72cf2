package taskq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmitrymomot/taskq/pkg/logger"
)

// Dispatcher loads a task by id and runs its handler.
type Dispatcher struct {
	store    Store
	registry *Registry
	logger   *slog.Logger
}

// NewDispatcher creates a Dispatcher resolving actions through registry.
func NewDispatcher(store Store, registry *Registry, opts ...DispatcherOption) (*Dispatcher, error) {
	if store == nil {
		return nil, ErrStoreNil
	}
	if registry == nil {
		return nil, ErrRegistryNil
	}

	options := &dispatcherOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(options)
	}

	return &Dispatcher{
		store:    store,
		registry: registry,
		logger:   options.logger,
	}, nil
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*dispatcherOptions)

type dispatcherOptions struct {
	logger *slog.Logger
}

// WithDispatcherLogger sets the logger for the dispatcher
func WithDispatcherLogger(logger *slog.Logger) DispatcherOption {
	return func(o *dispatcherOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// ExecuteTask runs the handler of task id. It does not touch the task row:
// attempt bookkeeping belongs to the runner.
//
// Returns ErrTaskNotFound if the task is gone, ErrHandlerNotFound if its
// action is not registered, and ErrHandlerFailed wrapping the handler's error.
func (d *Dispatcher) ExecuteTask(ctx context.Context, id int64) error {
	task, err := d.store.GetTask(ctx, id)
	if err != nil {
		if errors.Is(err, ErrTaskNotFound) {
			d.logger.ErrorContext(ctx, "task does not exist", logger.TaskID(id))
		}
		return err
	}

	payload, err := task.DecodePayload()
	if err != nil {
		d.logger.ErrorContext(ctx, "cannot decode task payload",
			logger.TaskID(id),
			logger.Error(err))
		return err
	}

	handler, err := d.registry.Lookup(payload.Action)
	if err != nil {
		if !errors.Is(err, ErrHandlerNotFound) {
			err = errors.Join(ErrHandlerNotFound, err)
		}
		d.logger.ErrorContext(ctx, "handler not found, cannot run task",
			logger.TaskID(id),
			logger.Action(payload.Action),
			logger.Error(err))
		return err
	}

	start := time.Now()
	if err := handler.Handle(ctx, payload.Data); err != nil {
		return fmt.Errorf("%w: task %d (%s): %w", ErrHandlerFailed, id, payload.Action, err)
	}

	d.logger.DebugContext(ctx, "handler finished",
		logger.TaskID(id),
		logger.Action(payload.Action),
		logger.Duration(time.Since(start)))

	return nil
}

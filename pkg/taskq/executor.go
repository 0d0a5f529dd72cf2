package taskq

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/taskq/pkg/logger"
)

// Executor runs one task and reports a two-valued outcome: nil on success,
// an error otherwise. A faulty handler must not take the caller down with it.
type Executor interface {
	Execute(ctx context.Context, id int64) error
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, id int64) error

func (f ExecutorFunc) Execute(ctx context.Context, id int64) error {
	return f(ctx, id)
}

// InProcessExecutor runs the dispatcher in the runner's process, behind a
// panic boundary and an optional timeout.
type InProcessExecutor struct {
	dispatcher   *Dispatcher
	timeout      time.Duration
	abandonAfter time.Duration
	logger       *slog.Logger
}

// DefaultAbandonAfter is how long a timed out handler may take to return
// before the executor stops waiting for it.
const DefaultAbandonAfter = 5 * time.Second

// InProcessOption configures an InProcessExecutor.
type InProcessOption func(*InProcessExecutor)

// WithAbandonAfter sets how long Execute waits for a handler to return once
// its context is done. Zero stops waiting immediately.
func WithAbandonAfter(d time.Duration) InProcessOption {
	return func(e *InProcessExecutor) {
		if d >= 0 {
			e.abandonAfter = d
		}
	}
}

// NewInProcessExecutor wraps d. A zero timeout lets handlers run unbounded.
func NewInProcessExecutor(d *Dispatcher, timeout time.Duration, log *slog.Logger, opts ...InProcessOption) *InProcessExecutor {
	if log == nil {
		log = slog.Default()
	}
	e := &InProcessExecutor{
		dispatcher:   d,
		timeout:      timeout,
		abandonAfter: DefaultAbandonAfter,
		logger:       log,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs task id. When the context is done the attempt is reported as
// failed, but Execute keeps waiting for the handler to return for up to the
// abandon period so that handlers honouring ctx never overlap the next task.
// Only a handler that ignores ctx past that period is left running.
func (e *InProcessExecutor) Execute(ctx context.Context, id int64) error {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() {
		done <- e.safeExecute(ctx, id)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
	}

	grace := time.NewTimer(e.abandonAfter)
	defer grace.Stop()

	select {
	case <-done:
		e.logger.ErrorContext(ctx, "task interrupted",
			logger.TaskID(id),
			logger.Error(ctx.Err()))
	case <-grace.C:
		e.logger.ErrorContext(ctx, "task abandoned",
			logger.TaskID(id),
			logger.Duration(e.abandonAfter),
			logger.Error(ctx.Err()))
	}
	return errors.Join(ErrHandlerFailed, ctx.Err())
}

func (e *InProcessExecutor) safeExecute(ctx context.Context, id int64) (err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.ErrorContext(ctx, "handler panicked",
				logger.TaskID(id),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
			err = fmt.Errorf("%w: panic in handler: %v", ErrHandlerFailed, r)
		}
	}()

	return e.dispatcher.ExecuteTask(ctx, id)
}

// ExitTaskNotFound is the exit status of an "execute <id>" child that found
// no task with that id. The parent reports it as ErrTaskNotFound, so the row
// is left alone instead of being deleted as done.
const ExitTaskNotFound = 3

// ExecutionIDEnv names the variable through which a child process receives
// the execution id assigned by its parent.
const ExecutionIDEnv = "TASKQ_EXECUTION_ID"

// SubprocessExecutor runs each task in a fresh copy of a program invoked as
// "<path> [args...] execute <id>". Exit status 0 is success and
// ExitTaskNotFound means the child could not see the task.
type SubprocessExecutor struct {
	path    string
	args    []string
	env     []string
	timeout time.Duration
	stdout  io.Writer
	stderr  io.Writer
	logger  *slog.Logger
}

// SubprocessOption configures a SubprocessExecutor.
type SubprocessOption func(*SubprocessExecutor)

// WithSubprocessArgs inserts args before the "execute <id>" pair.
func WithSubprocessArgs(args ...string) SubprocessOption {
	return func(e *SubprocessExecutor) {
		e.args = append(e.args, args...)
	}
}

// WithSubprocessEnv adds KEY=value pairs to the inherited environment.
func WithSubprocessEnv(env ...string) SubprocessOption {
	return func(e *SubprocessExecutor) {
		e.env = append(e.env, env...)
	}
}

// WithSubprocessTimeout kills the child after d.
func WithSubprocessTimeout(d time.Duration) SubprocessOption {
	return func(e *SubprocessExecutor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithSubprocessOutput sets where child output goes. Nil discards it.
func WithSubprocessOutput(stdout, stderr io.Writer) SubprocessOption {
	return func(e *SubprocessExecutor) {
		e.stdout = stdout
		e.stderr = stderr
	}
}

// WithSubprocessLogger sets the logger for the executor
func WithSubprocessLogger(logger *slog.Logger) SubprocessOption {
	return func(e *SubprocessExecutor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewSubprocessExecutor creates an executor for path. An empty path means the
// running binary.
func NewSubprocessExecutor(path string, opts ...SubprocessOption) (*SubprocessExecutor, error) {
	if path == "" {
		self, err := os.Executable()
		if err != nil {
			return nil, errors.Join(ErrStartup, err)
		}
		path = self
	}

	e := &SubprocessExecutor{
		path:   path,
		stdout: os.Stdout,
		stderr: os.Stderr,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Execute starts the child and waits for it.
func (e *SubprocessExecutor) Execute(ctx context.Context, id int64) error {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	args := append(append([]string{}, e.args...), "execute", strconv.FormatInt(id, 10))
	cmd := exec.CommandContext(ctx, e.path, args...)
	cmd.Stdout = e.stdout
	cmd.Stderr = e.stderr

	execID := uuid.NewString()
	cmd.Env = append(os.Environ(), e.env...)
	cmd.Env = append(cmd.Env, ExecutionIDEnv+"="+execID)

	e.logger.DebugContext(ctx, "starting task process",
		logger.TaskID(id),
		slog.String("execution_id", execID))

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			if exitErr.ExitCode() == ExitTaskNotFound {
				e.logger.WarnContext(ctx, "task process could not find the task",
					logger.TaskID(id),
					slog.String("execution_id", execID))
				return fmt.Errorf("%w: task %d not visible to child process", ErrTaskNotFound, id)
			}
			return fmt.Errorf("%w: task %d exited with status %d", ErrHandlerFailed, id, exitErr.ExitCode())
		}
		e.logger.ErrorContext(ctx, "cannot start task process",
			logger.TaskID(id),
			slog.String("execution_id", execID),
			slog.String("path", e.path),
			logger.Error(err))
		return errors.Join(ErrHandlerFailed, err)
	}
	return nil
}

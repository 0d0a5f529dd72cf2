package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/taskq/pkg/logger"
	"github.com/dmitrymomot/taskq/pkg/taskq"
	"github.com/dmitrymomot/taskq/pkg/taskq/httpapi"
)

type usageError struct {
	msg string
}

func (e usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return usageError{msg: fmt.Sprintf(format, args...)}
}

// missingTaskError is returned by execute when the task is not in the store
// this process opened.
type missingTaskError struct {
	id int64
}

func (e missingTaskError) Error() string {
	return fmt.Sprintf("task %d not found", e.id)
}

// exitCode reports err on stderr and maps it to a process exit status.
func exitCode(err error, stderr io.Writer) int {
	var (
		uerr    usageError
		missing missingTaskError
	)
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &missing):
		fmt.Fprintf(stderr, "taskq: %v\n", err)
		return exitNotFound
	case errors.Is(err, taskq.ErrAlreadyRunning):
		fmt.Fprintln(stderr, "TaskQueue is already running.")
		return exitOK
	case errors.As(err, &uerr), errors.Is(err, taskq.ErrInvalidMode):
		fmt.Fprintf(stderr, "taskq: %v\n", err)
		return exitUsage
	default:
		fmt.Fprintf(stderr, "taskq: %v\n", err)
		return exitFail
	}
}

func parseMode(args []string) (taskq.Mode, error) {
	switch len(args) {
	case 0:
		return taskq.ModeAll, nil
	case 1:
		return taskq.ParseMode(args[0])
	default:
		return "", usagef("expected at most one mode argument, got %d", len(args))
	}
}

func parseID(args []string) (int64, error) {
	if len(args) != 1 {
		return 0, usagef("expected a task id")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, usagef("invalid task id %q", args[0])
	}
	return id, nil
}

func cmdRun(ctx context.Context, a *app, args []string, _ io.Writer) error {
	mode, err := parseMode(args)
	if err != nil {
		return err
	}
	r, err := a.runner()
	if err != nil {
		return err
	}
	return r.RunExclusive(ctx, mode)
}

// cmdExecute is the child side of subprocess dispatch. A task it cannot see
// exits with exitNotFound so the parent keeps the row.
func cmdExecute(ctx context.Context, a *app, args []string, _ io.Writer) error {
	id, err := parseID(args)
	if err != nil {
		return err
	}
	if execID := os.Getenv(taskq.ExecutionIDEnv); execID != "" {
		ctx = logger.WithExecutionID(ctx, execID)
	}

	d, err := a.dispatcher()
	if err != nil {
		return err
	}
	err = d.ExecuteTask(ctx, id)
	if errors.Is(err, taskq.ErrTaskNotFound) {
		return missingTaskError{id: id}
	}
	return err
}

func cmdAdd(ctx context.Context, a *app, args []string, stdout io.Writer) error {
	if len(args) < 1 || len(args) > 3 {
		return usagef("usage: taskq add <action> [json] [priority]")
	}

	var data taskq.Data
	if len(args) > 1 && args[1] != "" {
		if err := json.Unmarshal([]byte(args[1]), &data); err != nil {
			return usagef("invalid json data: %v", err)
		}
	}

	var opts []taskq.AddOption
	if len(args) > 2 {
		p, err := strconv.Atoi(args[2])
		if err != nil {
			return usagef("invalid priority %q", args[2])
		}
		opts = append(opts, taskq.WithPriority(p))
	}

	e, err := a.enqueuer()
	if err != nil {
		return err
	}
	id, err := e.Add(ctx, args[0], data, opts...)
	if err != nil {
		if errors.Is(err, taskq.ErrInvalidAction) {
			return usageError{msg: err.Error()}
		}
		return err
	}

	fmt.Fprintln(stdout, id)
	return nil
}

func cmdDead(ctx context.Context, a *app, args []string, stdout io.Writer) error {
	limit := 0
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 0 {
			return usagef("invalid limit %q", args[0])
		}
		limit = n
	}

	admin, err := a.admin()
	if err != nil {
		return err
	}
	tasks, err := admin.Dead(ctx, limit)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPRIORITY\tATTEMPTS\tADDED\tACTION")
	for _, t := range tasks {
		action := "?"
		if p, err := t.DecodePayload(); err == nil {
			action = p.Action
		}
		fmt.Fprintf(tw, "%d\t%d\t%d\t%s\t%s\n", t.ID, t.Priority, t.Attempts, t.AddedAt.Format(time.RFC3339), action)
	}
	return tw.Flush()
}

func cmdRevive(ctx context.Context, a *app, args []string, stdout io.Writer) error {
	id, err := parseID(args)
	if err != nil {
		return err
	}
	admin, err := a.admin()
	if err != nil {
		return err
	}
	if err := admin.Revive(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "task %d revived\n", id)
	return nil
}

func cmdStats(ctx context.Context, a *app, _ []string, stdout io.Writer) error {
	admin, err := a.admin()
	if err != nil {
		return err
	}
	s, err := admin.Stats(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "pending %d\ndead %d\n", s.Pending, s.Dead)
	return nil
}

// cmdServe runs the runner and the HTTP API until either fails or ctx ends.
func cmdServe(ctx context.Context, a *app, args []string, _ io.Writer) error {
	mode, err := parseMode(args)
	if err != nil {
		return err
	}
	r, err := a.runner()
	if err != nil {
		return err
	}
	e, err := a.enqueuer()
	if err != nil {
		return err
	}
	admin, err := a.admin()
	if err != nil {
		return err
	}

	handler := httpapi.Router(httpapi.Options{
		Enqueuer: e,
		Admin:    admin,
		Checks:   a.checks,
		Logger:   a.log.With(logger.Component("http")),
	})
	srv := httpapi.NewServer(a.cfg.HTTP, a.log)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(r.RunFunc(ctx, mode))
	g.Go(func() error { return srv.Run(ctx, handler) })
	return g.Wait()
}

func cmdMigrate(ctx context.Context, a *app, _ []string, stdout io.Writer) error {
	if err := a.migrate(ctx); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%s store is up to date\n", a.cfg.Store)
	return nil
}

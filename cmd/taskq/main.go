// Command taskq runs and administers a persistent task queue.
//
//	taskq run [all|lo|hi]             process tasks until interrupted
//	taskq execute <id>                run a single task (used by the runner)
//	taskq add <action> [json] [prio]  enqueue a task
//	taskq dead [limit]                list tasks that reached the attempt ceiling
//	taskq revive <id>                 make a dead task eligible again
//	taskq stats                       print pending and dead counts
//	taskq serve [all|lo|hi]           run the runner and the HTTP API together
//	taskq migrate                     create or upgrade the store schema
//
// Configuration is read from the environment and an optional .env file.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrymomot/taskq/pkg/taskq"
)

// Exit codes.
const (
	exitOK       = 0
	exitFail     = 1
	exitUsage    = 2
	exitNotFound = taskq.ExitTaskNotFound
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type command func(ctx context.Context, a *app, args []string, stdout io.Writer) error

var commands = map[string]command{
	"run":     cmdRun,
	"execute": cmdExecute,
	"add":     cmdAdd,
	"dead":    cmdDead,
	"revive":  cmdRevive,
	"stats":   cmdStats,
	"serve":   cmdServe,
	"migrate": cmdMigrate,
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return exitUsage
	}

	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(stderr, "taskq: unknown command %q\n", args[0])
		usage(stderr)
		return exitUsage
	}

	a, err := newApp(ctx, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "taskq: %v\n", err)
		return exitFail
	}
	defer a.Close()

	return exitCode(cmd(ctx, a, args[1:], stdout), stderr)
}

func usage(w io.Writer) {
	fmt.Fprintln(w, `usage: taskq <command> [arguments]

commands:
  run [all|lo|hi]             process tasks until interrupted
  execute <id>                run a single task
  add <action> [json] [prio]  enqueue a task
  dead [limit]                list dead tasks
  revive <id>                 make a dead task eligible again
  stats                       print pending and dead counts
  serve [all|lo|hi]           run the runner and the HTTP API
  migrate                     create or upgrade the store schema`)
}

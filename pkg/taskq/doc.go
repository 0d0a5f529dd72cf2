// Package taskq provides a persistent, single-consumer task queue with a
// fixed-window retry schedule.
//
// Producers enqueue named actions with an argument map and a priority. A
// single runner process repeatedly claims the most eligible task, runs it,
// and deletes it on success. Every dispatch is recorded before the handler
// runs: the attempt counter is incremented and the task is pushed one retry
// window (60 seconds by default) into the future, so a crash mid-execution
// still leaves the next attempt correctly delayed. After ten attempts a task
// is dead: it stays in the store but is never selected again until an
// operator revives it.
//
// # Components
//
//   - Enqueuer  : Add admits a task ("mailer.send", data, WithPriority(5))
//   - PickTask  : selects the best eligible task inside a store transaction
//   - RetryPolicy: attempt and backoff bookkeeping
//   - Dispatcher: resolves the action through a Registry and calls it
//   - Executor  : failure boundary around a dispatch: in-process with panic
//     recovery, or a child process per task
//   - Runner    : the polling loop, guarded by a file lock so only one
//     runner is active at a time
//
// Persistence is reached through the Store and Tx interfaces. MemoryStorage
// ships with the package; PostgreSQL, SQLite and MongoDB implementations live
// in sub-packages.
//
// # Modes
//
// A runner works in one of three modes: ModeAll picks any eligible task,
// ModeHigh only tasks with priority >= 0 and ModeLow only tasks with
// priority < 0. Running one "hi" and one "lo" runner against separate lock
// files keeps cheap background work from starving urgent tasks.
//
// # Usage
//
//	store := taskq.NewMemoryStorage()
//	registry := taskq.NewRegistry()
//	registry.MustRegister("mailer.send", taskq.NewHandler(func(ctx context.Context, m Mail) error {
//	    return send(ctx, m)
//	}))
//
//	enqueuer, _ := taskq.NewEnqueuer(store)
//	_, _ = enqueuer.Add(ctx, "mailer.send", taskq.Data{"to": "a@b.com"})
//
//	dispatcher, _ := taskq.NewDispatcher(store, registry)
//	runner, _ := taskq.NewRunner(store, taskq.NewInProcessExecutor(dispatcher, 0, nil))
//	err := runner.RunExclusive(ctx, taskq.ModeAll)
//
// # Error Handling
//
// Sentinel errors such as ErrAlreadyRunning, ErrInvalidMode and
// ErrHandlerNotFound can be checked with errors.Is. The runner never stops
// because a single task failed.
package taskq

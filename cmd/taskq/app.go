package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/dmitrymomot/taskq/pkg/config"
	"github.com/dmitrymomot/taskq/pkg/logger"
	"github.com/dmitrymomot/taskq/pkg/taskq"
	"github.com/dmitrymomot/taskq/pkg/taskq/httpapi"
	"github.com/dmitrymomot/taskq/pkg/taskq/mongostore"
	"github.com/dmitrymomot/taskq/pkg/taskq/pgstore"
	"github.com/dmitrymomot/taskq/pkg/taskq/redisnotify"
	"github.com/dmitrymomot/taskq/pkg/taskq/sqlitestore"
)

var errUnknownStore = errors.New("unknown store, expected memory, sqlite, postgres or mongo")

// app holds the wired dependencies shared by all commands.
type app struct {
	cfg      appConfig
	log      *slog.Logger
	store    taskq.Store
	notifier taskq.Notifier
	registry *taskq.Registry
	checks   []httpapi.HealthFunc
	migrate  func(context.Context) error
	closers  []func()
}

func newApp(ctx context.Context, stderr io.Writer) (*app, error) {
	var cfg appConfig
	if err := config.Load(&cfg, config.WithEnvFiles(".env")); err != nil {
		return nil, err
	}

	opts := []logger.Option{
		logger.WithEnvironment(cfg.Env, cfg.Name),
		logger.WithOutput(stderr),
		logger.WithContextExtractors(logger.ExecutionIDExtractor),
	}
	if cfg.LogLevel != "" {
		opts = append(opts, logger.WithLevelName(cfg.LogLevel))
	}
	log := logger.New(opts...)
	logger.SetAsDefault(log)

	a := &app{
		cfg:      cfg,
		log:      log,
		registry: taskq.NewRegistry(),
	}
	registerHandlers(a.registry, log)

	if err := a.openStore(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.openNotifier(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if cfg.AutoMigrate {
		if err := a.migrate(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

func (a *app) openStore(ctx context.Context) error {
	storeLog := a.log.With(logger.Component("store"))

	switch a.cfg.Store {
	case storeMemory:
		a.store = taskq.NewMemoryStorage()
		a.migrate = func(context.Context) error { return nil }

	case storeSQLite:
		db, err := sqlitestore.Open(ctx, a.cfg.SQLite)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() { _ = db.Close() })
		a.store = sqlitestore.New(db)
		a.checks = append(a.checks, sqlitestore.Healthcheck(db))
		a.migrate = func(ctx context.Context) error {
			return sqlitestore.Migrate(ctx, db, a.cfg.SQLite, storeLog)
		}

	case storePostgres:
		var cfg pgstore.Config
		if err := config.Load(&cfg); err != nil {
			return err
		}
		pool, err := pgstore.Connect(ctx, cfg)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, pool.Close)
		a.store = pgstore.New(pool)
		a.checks = append(a.checks, pgstore.Healthcheck(pool))
		a.migrate = func(ctx context.Context) error {
			return pgstore.Migrate(ctx, pool, cfg, storeLog)
		}

	case storeMongo:
		var cfg mongostore.Config
		if err := config.Load(&cfg); err != nil {
			return err
		}
		client, err := mongostore.Connect(ctx, cfg)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() { _ = client.Disconnect(context.Background()) })
		store := mongostore.New(client, cfg.Database)
		a.store = store
		a.checks = append(a.checks, mongostore.Healthcheck(client))
		a.migrate = store.EnsureIndexes

	default:
		return fmt.Errorf("%w: %q", errUnknownStore, a.cfg.Store)
	}
	return nil
}

func (a *app) openNotifier(ctx context.Context) error {
	switch a.cfg.Notify {
	case "", "none":
		return nil
	case "local":
		a.notifier = taskq.NewLocalNotifier()
		return nil
	case "redis":
		var cfg redisnotify.Config
		if err := config.Load(&cfg); err != nil {
			return err
		}
		client, err := redisnotify.Connect(ctx, cfg)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		a.checks = append(a.checks, redisnotify.Healthcheck(client))
		a.notifier = redisnotify.New(client,
			redisnotify.WithChannel(cfg.Channel),
			redisnotify.WithLogger(a.log.With(logger.Component("notifier"))))
		return nil
	default:
		return fmt.Errorf("unknown notifier %q, expected none, local or redis", a.cfg.Notify)
	}
}

func (a *app) enqueuer() (*taskq.Enqueuer, error) {
	opts := []taskq.EnqueuerOption{taskq.WithEnqueuerLogger(a.log)}
	if a.notifier != nil {
		opts = append(opts, taskq.WithNotifier(a.notifier))
	}
	return taskq.NewEnqueuer(a.store, opts...)
}

func (a *app) admin() (*taskq.Admin, error) {
	return taskq.NewAdmin(a.store, a.cfg.Queue.Policy(), a.log)
}

func (a *app) dispatcher() (*taskq.Dispatcher, error) {
	return taskq.NewDispatcher(a.store, a.registry, taskq.WithDispatcherLogger(a.log))
}

// processLocal reports whether the store cannot be opened by a child process.
func (a *app) processLocal() bool {
	switch a.cfg.Store {
	case storeMemory:
		return true
	case storeSQLite:
		return a.cfg.SQLite.InMemory()
	}
	return false
}

// executor builds the dispatch boundary. A process-local store always
// dispatches in process.
func (a *app) executor() (taskq.Executor, error) {
	mode := a.cfg.Queue.Dispatch
	if a.processLocal() && mode != "inprocess" {
		a.log.Debug("store is process-local, dispatching in process",
			slog.String("store", a.cfg.Store))
		mode = "inprocess"
	}

	switch mode {
	case "inprocess":
		d, err := a.dispatcher()
		if err != nil {
			return nil, err
		}
		return taskq.NewInProcessExecutor(d, a.cfg.Queue.ExecTimeout, a.log), nil
	case "", "subprocess":
		return taskq.NewSubprocessExecutor("",
			taskq.WithSubprocessTimeout(a.cfg.Queue.ExecTimeout),
			taskq.WithSubprocessLogger(a.log))
	default:
		return nil, fmt.Errorf("unknown dispatch mode %q, expected subprocess or inprocess", mode)
	}
}

func (a *app) runner() (*taskq.Runner, error) {
	exec, err := a.executor()
	if err != nil {
		return nil, err
	}
	opts := []taskq.RunnerOption{
		taskq.WithConfig(a.cfg.Queue),
		taskq.WithRunnerLogger(a.log),
	}
	if a.notifier != nil {
		opts = append(opts, taskq.WithWakeup(a.notifier))
	}
	return taskq.NewRunner(a.store, exec, opts...)
}

// Close releases connections in reverse order of opening.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

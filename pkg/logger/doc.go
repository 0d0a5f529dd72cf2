// Package logger builds *slog.Logger values for taskq binaries and provides
// attribute helpers so every component names fields the same way
// (task_id, action, attempts, mode, error).
//
// New accepts functional options for format, level, static attributes and
// ContextExtractor callbacks. Extractors run on every record through
// LogHandlerDecorator, which is how the execution id of a child process
// (WithExecutionID) ends up on each of its log entries.
//
//	log := logger.New(logger.WithEnvironment("production", "taskq"))
//	log.Info("task added", logger.TaskID(id), logger.Action("mailer.send"))
package logger

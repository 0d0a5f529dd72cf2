package taskq

import (
	"log/slog"
	"time"
)

// RunnerOption is a functional option for configuring a runner
type RunnerOption func(*runnerOptions)

type runnerOptions struct {
	policy       RetryPolicy
	pollInterval time.Duration
	lockFile     string
	notifier     Notifier
	logger       *slog.Logger
	now          func() time.Time
}

// WithRetryPolicy sets the backoff window and attempt ceiling.
func WithRetryPolicy(p RetryPolicy) RunnerOption {
	return func(o *runnerOptions) {
		o.policy = NewRetryPolicy(p.Backoff, p.MaxAttempts)
	}
}

// WithPollInterval sets how long an idle runner sleeps between cycles.
func WithPollInterval(d time.Duration) RunnerOption {
	return func(o *runnerOptions) {
		if d > 0 {
			o.pollInterval = d
		}
	}
}

// WithLockFile sets the path used by RunExclusive.
func WithLockFile(path string) RunnerOption {
	return func(o *runnerOptions) {
		if path != "" {
			o.lockFile = path
		}
	}
}

// WithWakeup lets the runner leave its idle sleep as soon as n fires.
func WithWakeup(n Notifier) RunnerOption {
	return func(o *runnerOptions) {
		o.notifier = n
	}
}

// WithRunnerLogger sets the logger for the runner
func WithRunnerLogger(logger *slog.Logger) RunnerOption {
	return func(o *runnerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithRunnerClock overrides the time source.
func WithRunnerClock(now func() time.Time) RunnerOption {
	return func(o *runnerOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// WithConfig applies the settings of cfg.
func WithConfig(cfg Config) RunnerOption {
	return func(o *runnerOptions) {
		WithRetryPolicy(cfg.Policy())(o)
		WithPollInterval(cfg.PollInterval)(o)
		WithLockFile(cfg.LockFile)(o)
	}
}

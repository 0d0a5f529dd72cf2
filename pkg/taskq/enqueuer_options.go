package taskq

import (
	"log/slog"
	"time"
)

// EnqueuerOption configures an Enqueuer.
type EnqueuerOption func(*enqueuerOptions)

type enqueuerOptions struct {
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// WithEnqueuerLogger sets the logger for the enqueuer
func WithEnqueuerLogger(logger *slog.Logger) EnqueuerOption {
	return func(o *enqueuerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithNotifier makes the enqueuer wake idle runners after each insert.
func WithNotifier(n Notifier) EnqueuerOption {
	return func(o *enqueuerOptions) {
		o.notifier = n
	}
}

// WithEnqueuerClock overrides the time source.
func WithEnqueuerClock(now func() time.Time) EnqueuerOption {
	return func(o *enqueuerOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// AddOption is a functional option for the Add method
type AddOption func(*addOptions)

type addOptions struct {
	priority int
	delay    time.Duration
}

// WithPriority sets the task priority. Higher runs first; negative values
// are only picked by runners in "all" or "lo" mode.
func WithPriority(priority int) AddOption {
	return func(o *addOptions) {
		o.priority = priority
	}
}

// WithDelay postpones the first attempt.
func WithDelay(delay time.Duration) AddOption {
	return func(o *addOptions) {
		if delay > 0 {
			o.delay = delay
		}
	}
}

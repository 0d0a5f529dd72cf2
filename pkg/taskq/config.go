package taskq

import "time"

// Config holds runner and dispatch settings.
type Config struct {
	LockFile     string        `env:"TASKQ_LOCK_FILE" envDefault:"var/taskq.lock"`
	PollInterval time.Duration `env:"TASKQ_POLL_INTERVAL" envDefault:"1s"`
	RetryDelay   time.Duration `env:"TASKQ_RETRY_DELAY" envDefault:"60s"`
	MaxAttempts  int           `env:"TASKQ_MAX_ATTEMPTS" envDefault:"10"`
	ExecTimeout  time.Duration `env:"TASKQ_EXEC_TIMEOUT" envDefault:"0s"`  // zero means no timeout; see InProcessExecutor.Execute for overrun handling
	Dispatch     string        `env:"TASKQ_DISPATCH" envDefault:"subprocess"` // subprocess or inprocess
}

// Policy builds the retry policy described by the config.
func (c Config) Policy() RetryPolicy {
	return NewRetryPolicy(c.RetryDelay, c.MaxAttempts)
}

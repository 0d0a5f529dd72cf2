//go:build unix

package taskq

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Lock is an exclusive advisory lock on a file, held until Release or exit.
type Lock struct {
	path string
	file *os.File
}

// AcquireLock takes a non-blocking exclusive flock on path.
// It returns ErrAlreadyRunning when another process holds it and an error
// wrapping ErrStartup when the file cannot be opened.
func AcquireLock(path string) (*Lock, error) {
	if path == "" {
		path = DefaultLockFile
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: could not open lock file %s for writing: %w", ErrStartup, path, err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, ErrAlreadyRunning
		}
		return nil, fmt.Errorf("%w: could not lock %s: %w", ErrStartup, path, err)
	}

	return &Lock{path: path, file: f}, nil
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

// Release unlocks and closes the file. Safe to call more than once.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	f := l.file
	l.file = nil
	_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
	return f.Close()
}

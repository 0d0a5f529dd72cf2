//go:build !unix

package taskq

import "errors"

// Lock is unavailable on this platform.
type Lock struct{}

// AcquireLock always fails with ErrLockUnsupported wrapped in ErrStartup.
func AcquireLock(path string) (*Lock, error) {
	return nil, errors.Join(ErrStartup, ErrLockUnsupported)
}

func (l *Lock) Path() string { return "" }

func (l *Lock) Release() error { return nil }

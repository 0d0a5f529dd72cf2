package taskq

import "errors"

var (
	// ErrStartup is returned when the lock resource cannot be opened at all.
	ErrStartup = errors.New("taskq: startup failed")

	// ErrAlreadyRunning is returned when another runner holds the lock.
	ErrAlreadyRunning = errors.New("taskq: runner is already running")

	// ErrInvalidMode is returned for a selection mode other than all, lo or hi.
	ErrInvalidMode = errors.New("taskq: unknown mode")

	// ErrTaskNotFound is returned when a task id does not exist in the store.
	ErrTaskNotFound = errors.New("taskq: task not found")

	// ErrHandlerNotFound is returned when an action names an unregistered handler or method.
	ErrHandlerNotFound = errors.New("taskq: handler not found")

	// ErrHandlerFailed is returned when a handler returns an error, panics or exits non-zero.
	ErrHandlerFailed = errors.New("taskq: handler failed")

	// ErrInvalidAction is returned for an action not shaped as <handler>.<method>.
	ErrInvalidAction = errors.New("taskq: invalid action")

	// ErrHandlerAlreadyRegistered is returned when an action is registered twice.
	ErrHandlerAlreadyRegistered = errors.New("taskq: handler already registered")

	// ErrPayloadEncode is returned when task data cannot be serialized.
	ErrPayloadEncode = errors.New("taskq: failed to encode payload")

	// ErrPayloadDecode is returned when a stored payload cannot be decoded.
	ErrPayloadDecode = errors.New("taskq: failed to decode payload")

	// ErrTaskCreate is returned when the store rejects a new task.
	ErrTaskCreate = errors.New("taskq: failed to create task")

	// ErrStoreNil is returned when a nil store is provided.
	ErrStoreNil = errors.New("taskq: store cannot be nil")

	// ErrExecutorNil is returned when a nil executor is provided.
	ErrExecutorNil = errors.New("taskq: executor cannot be nil")

	// ErrRegistryNil is returned when a nil registry is provided.
	ErrRegistryNil = errors.New("taskq: registry cannot be nil")

	// ErrLockUnsupported is returned on platforms without flock(2).
	ErrLockUnsupported = errors.New("taskq: file locking is not supported on this platform")
)

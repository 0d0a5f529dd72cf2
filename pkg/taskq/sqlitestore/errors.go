package sqlitestore

import "errors"

var (
	ErrFailedToOpenDB          = errors.New("failed to open sqlite database")
	ErrEmptyPath               = errors.New("empty sqlite path, use SQLITE_PATH env var")
	ErrHealthcheckFailed       = errors.New("sqlite healthcheck failed")
	ErrFailedToApplyMigrations = errors.New("failed to apply sqlite migrations")
)

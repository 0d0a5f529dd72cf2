package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"

	_ "github.com/mattn/go-sqlite3"
)

const memoryPath = ":memory:"

// Open opens the database at cfg.Path. Write transactions take the database
// lock at BEGIN, so two runners never pick the same task.
func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	if cfg.Path == "" {
		return nil, ErrEmptyPath
	}

	db, err := sql.Open("sqlite3", dsn(cfg))
	if err != nil {
		return nil, errors.Join(ErrFailedToOpenDB, err)
	}

	// Every connection to ":memory:" is a separate database.
	if cfg.Path == memoryPath {
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Join(ErrFailedToOpenDB, err)
	}

	return db, nil
}

func dsn(cfg Config) string {
	q := url.Values{}
	q.Set("_txlock", "immediate")
	q.Set("_busy_timeout", fmt.Sprintf("%d", cfg.BusyTimeout.Milliseconds()))
	return "file:" + cfg.Path + "?" + q.Encode()
}

// Healthcheck returns a closure that pings the database.
func Healthcheck(db *sql.DB) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			return errors.Join(ErrHealthcheckFailed, err)
		}
		return nil
	}
}

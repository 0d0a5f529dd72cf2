package sqlitestore

import "time"

type Config struct {
	Path            string        `env:"SQLITE_PATH" envDefault:"var/taskq.db"`                // Path is the database file, or ":memory:".
	BusyTimeout     time.Duration `env:"SQLITE_BUSY_TIMEOUT" envDefault:"5s"`                  // BusyTimeout is how long a writer waits for the database lock.
	MigrationsTable string        `env:"SQLITE_MIGRATIONS_TABLE" envDefault:"schema_migrations"` // MigrationsTable stores the applied migration version.
}

// InMemory reports whether the database lives only in this process.
func (c Config) InMemory() bool {
	return c.Path == memoryPath
}

package main

import (
	"github.com/dmitrymomot/taskq/pkg/taskq"
	"github.com/dmitrymomot/taskq/pkg/taskq/httpapi"
	"github.com/dmitrymomot/taskq/pkg/taskq/sqlitestore"
)

// Store backends selectable with TASKQ_STORE.
const (
	storeMemory   = "memory"
	storeSQLite   = "sqlite"
	storePostgres = "postgres"
	storeMongo    = "mongo"
)

type appConfig struct {
	Env         string `env:"APP_ENV" envDefault:"development"`
	Name        string `env:"APP_NAME" envDefault:"taskq"`
	LogLevel    string `env:"LOG_LEVEL"`
	Store       string `env:"TASKQ_STORE" envDefault:"sqlite"`
	Notify      string `env:"TASKQ_NOTIFY" envDefault:"none"` // none, local or redis
	AutoMigrate bool   `env:"TASKQ_AUTO_MIGRATE" envDefault:"true"`

	Queue  taskq.Config
	SQLite sqlitestore.Config
	HTTP   httpapi.Config
}

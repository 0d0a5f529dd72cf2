// Package sqlitestore implements taskq.Store on SQLite through
// github.com/mattn/go-sqlite3.
//
// Transactions are opened with BEGIN IMMEDIATE, so the pick-and-mark step
// holds the database write lock and a second runner waits instead of
// picking the same task. The schema is managed by goose from migrations
// embedded in the binary.
//
//	db, err := sqlitestore.Open(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	if err := sqlitestore.Migrate(ctx, db, cfg, log); err != nil {
//		return err
//	}
//	store := sqlitestore.New(db)
package sqlitestore

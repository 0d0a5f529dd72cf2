// Package pgstore implements taskq.Store on PostgreSQL using pgx/v5.
//
// The pick step runs SELECT ... FOR UPDATE SKIP LOCKED inside the caller's
// transaction, so the selected row stays locked until the attempt is
// committed. Schema migrations are embedded and applied with goose.
//
//	pool, err := pgstore.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	if err := pgstore.Migrate(ctx, pool, cfg, log); err != nil {
//		return err
//	}
//	store := pgstore.New(pool)
//
// Connection settings come from PG_* environment variables; see Config.
package pgstore

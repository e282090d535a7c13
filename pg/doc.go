// Package pg provides the PostgreSQL implementation of the queue.Storage
// contract using the pgx/v5 driver, together with utilities for connection
// pooling, schema migrations, and health checks.
//
// The storage adapter maps the queue protocol's primitives to three tables
// (corequeue_kv, corequeue_hash, corequeue_list) created by an embedded goose
// migration. Atomicity comes from single SQL statements: conditional-create
// is INSERT ... ON CONFLICT DO NOTHING, atomic increment is an upsert with
// RETURNING, and pop-right is DELETE ... RETURNING over a SKIP LOCKED
// sub-select so competing consumers never block each other.
//
// # Usage
//
//	var cfg pg.Config
//	if err := config.Load(&cfg); err != nil {
//	    return err
//	}
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, cfg, slog.Default()); err != nil {
//	    return err
//	}
//
//	q, err := queue.New(ctx, pg.NewStorage(pool), "emails")
//
// # Configuration
//
// All configuration values are provided through environment variables so that
// they can be tuned per-environment without code changes. Refer to the field
// tags in Config for exact variable names and defaults.
//
// # Error Handling
//
// Convenience helpers such as [IsDuplicateKeyError] unwrap errors returned by
// pgx/`*pgconn.PgError` and make error classification trivial inside business
// logic.
package pg

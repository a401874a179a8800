// Package pg bootstraps PostgreSQL access for notifyq using the pgx/v5 driver.
//
// It covers the pieces every store needs before its first query: a pooled
// connection with retry (Connect), schema migrations through goose (Migrate
// for a directory on disk, MigrateFS for migrations embedded in the binary),
// a ping based health check (Healthcheck) and SQLSTATE classifiers such as
// IsDuplicateKeyError.
//
// # Usage
//
//	var cfg pg.Config
//	if err := env.Parse(&cfg); err != nil {
//	    return err
//	}
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
//
//	if err := pg.MigrateFS(ctx, pool, migrations.FS, cfg, slog.Default()); err != nil {
//	    return err
//	}
//
// # Configuration
//
// All values come from environment variables; see the field tags on Config.
// PG_CONN_URL is required.
package pg

// Package pg stores sessions in PostgreSQL using the pgx/v5 driver.
//
// It offers:
//
//   - Config, populated from PG_* environment variables via
//     github.com/caarlos0/env.
//   - Connect, which opens a *pgxpool.Pool and retries with a linearly
//     growing pause until the database answers.
//   - Migrate, which applies the embedded session_cache schema with goose.
//   - SessionCache, a session.Cache implementation. Rows carry an
//     expires_at column checked on every read; Run deletes expired rows
//     periodically. Mutations are announced with NOTIFY inside the writing
//     transaction and every node LISTENs on a dedicated connection.
//   - Healthcheck, for readiness probes.
//
// # Usage
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, cfg, log); err != nil {
//	    return err
//	}
//
//	store := pg.NewSessionCacheFromConfig(pool, cfg, pg.WithLogger(log))
//	go store.Run(ctx)
//
//	manager, err := session.New(store)
//
// # Notifications
//
// NOTIFY payloads are limited to 8000 bytes. Events for larger sessions are
// sent without the value; receivers read the row for creations and rely on
// their local copy, or the session manager's snapshot, for removals.
package pg

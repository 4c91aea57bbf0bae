// Package redis stores sessions in Redis and replicates their lifecycle
// events between nodes.
//
// The package wraps the go-redis client and adds:
//
//   - Connect, which retries the initial ping using the supplied Config.
//   - SessionCache, a session.Cache implementation: entries live under a key
//     prefix with a PX expiry, created and removed notifications travel on a
//     pub/sub channel, and expiry notifications come from keyspace events.
//   - Healthcheck, for readiness probes.
//
// Config fields are populated from environment variables via
// github.com/caarlos0/env.
//
// # Usage
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	store := redis.NewSessionCacheFromConfig(client, cfg, redis.WithLogger(log))
//	manager, err := session.New(store, session.WithLogger(log))
//
// # Expiry notifications
//
// Redis only reports expired keys when the server runs with
// notify-keyspace-events containing "Ex". Enable WithKeyspaceEvents (or
// REDIS_KEYSPACE_EVENTS) on such servers. The notification carries no
// value, so only nodes holding a local copy of the session can attach it;
// the session manager falls back to its own snapshot otherwise.
//
// # Errors
//
// Connection problems are reported with sentinel errors (ErrRedisNotReady
// and friends) joined with the go-redis error. SessionCache wraps transport
// failures in session.ErrStoreUnavailable.
package redis

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/clustersession/pkg/config"
	"github.com/dmitrymomot/clustersession/pkg/logger"
	"github.com/dmitrymomot/clustersession/pkg/pg"
	"github.com/dmitrymomot/clustersession/pkg/redis"
	"github.com/dmitrymomot/clustersession/pkg/session"
)

var errUnknownBackend = errors.New("unknown session backend")

// backend is an opened session store with its probes and background work
type backend struct {
	cache  session.Cache
	checks []func(context.Context) error
	// run blocks until ctx is done; nil when the store needs no
	// background work
	run   func(ctx context.Context) error
	close func()
}

func openBackend(ctx context.Context, app appConfig, log *slog.Logger) (*backend, error) {
	switch app.Backend {
	case backendMemory:
		cluster := session.NewMemoryCluster(
			session.WithMemoryLogger(log),
			session.WithCleanupInterval(app.MemoryCleanupInterval),
		)
		return &backend{
			cache: cluster.Join(),
			close: func() { _ = cluster.Close() },
		}, nil

	case backendRedis:
		var cfg redis.Config
		if err := config.Load(&cfg); err != nil {
			return nil, err
		}
		client, err := redis.Connect(ctx, cfg)
		if err != nil {
			return nil, err
		}
		checkRedisExpiry(ctx, client, cfg, log)
		return &backend{
			cache: redis.NewSessionCacheFromConfig(client, cfg,
				redis.WithNodeID(app.NodeID),
				redis.WithLogger(log),
			),
			checks: []func(context.Context) error{redis.Healthcheck(client)},
			close:  func() { _ = client.Close() },
		}, nil

	case backendPostgres:
		var cfg pg.Config
		if err := config.Load(&cfg); err != nil {
			return nil, err
		}
		pool, err := pg.Connect(ctx, cfg)
		if err != nil {
			return nil, err
		}
		store := pg.NewSessionCacheFromConfig(pool, cfg,
			pg.WithNodeID(app.NodeID),
			pg.WithLogger(log),
		)
		return &backend{
			cache:  store,
			checks: []func(context.Context) error{pg.Healthcheck(pool)},
			run:    store.Run,
			close:  pool.Close,
		}, nil

	default:
		return nil, fmt.Errorf("%w: %q", errUnknownBackend, app.Backend)
	}
}

// checkRedisExpiry warns when expired sessions will not reach destroyed
// listeners. Startup continues either way.
func checkRedisExpiry(ctx context.Context, client goredis.UniversalClient, cfg redis.Config, log *slog.Logger) {
	if !cfg.KeyspaceEvents {
		log.WarnContext(ctx, "expired sessions are not reported, set REDIS_KEYSPACE_EVENTS=true to observe them",
			logger.Backend("redis"))
		return
	}
	if err := redis.CheckKeyspaceEvents(ctx, client); err != nil {
		log.WarnContext(ctx, "expired sessions may not be reported",
			logger.Backend("redis"), logger.Error(err))
	}
}

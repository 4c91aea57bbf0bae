package redis

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Connect opens a client for cfg.ConnectionURL and pings it until the server
// answers, at most cfg.RetryAttempts times, waiting cfg.RetryInterval between
// attempts. The whole procedure is bounded by cfg.ConnectTimeout.
func Connect(ctx context.Context, cfg Config) (*redis.Client, error) {
	if cfg.ConnectionURL == "" {
		return nil, ErrEmptyConnectionURL
	}

	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}

	opts, err := redis.ParseURL(cfg.ConnectionURL)
	if err != nil {
		return nil, errors.Join(ErrFailedToParseRedisConnString, err)
	}

	attempts := max(cfg.RetryAttempts, 1)
	var lastErr error
	for attempt := range attempts {
		client := redis.NewClient(opts)
		if lastErr = client.Ping(ctx).Err(); lastErr == nil {
			return client, nil
		}
		_ = client.Close()

		if attempt == attempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrRedisNotReady, ctx.Err())
		case <-time.After(cfg.RetryInterval):
		}
	}

	return nil, errors.Join(ErrRedisNotReady, lastErr)
}

const probeTimeout = 2 * time.Second

// Healthcheck returns a readiness probe that pings the server. A probe never
// waits longer than two seconds, whatever the caller's deadline.
func Healthcheck(client redis.UniversalClient) func(context.Context) error {
	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, probeTimeout)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			return errors.Join(ErrHealthcheckFailed, err)
		}
		return nil
	}
}

// ExpiryNotifications reports whether flags, a notify-keyspace-events
// value, makes the server publish __keyevent@*__:expired messages.
func ExpiryNotifications(flags string) bool {
	return strings.Contains(flags, "E") && strings.ContainsAny(flags, "xA")
}

// CheckKeyspaceEvents reads notify-keyspace-events from the server and
// returns ErrKeyspaceEventsDisabled when expiry is not published.
func CheckKeyspaceEvents(ctx context.Context, client redis.UniversalClient) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	vals, err := client.ConfigGet(ctx, "notify-keyspace-events").Result()
	if err != nil {
		return errors.Join(ErrKeyspaceEventsUnknown, err)
	}
	if !ExpiryNotifications(vals["notify-keyspace-events"]) {
		return ErrKeyspaceEventsDisabled
	}
	return nil
}

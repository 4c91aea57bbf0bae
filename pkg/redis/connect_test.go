package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/clustersession/pkg/redis"
)

func TestConnect(t *testing.T) {
	t.Parallel()

	t.Run("connects and passes healthcheck", func(t *testing.T) {
		t.Parallel()
		mr := miniredis.RunT(t)

		client, err := redis.Connect(context.Background(), redis.Config{
			ConnectionURL:  "redis://" + mr.Addr() + "/0",
			RetryAttempts:  3,
			RetryInterval:  10 * time.Millisecond,
			ConnectTimeout: time.Second,
		})
		require.NoError(t, err)
		t.Cleanup(func() { _ = client.Close() })

		assert.NoError(t, redis.Healthcheck(client)(context.Background()))

		mr.Close()
		assert.ErrorIs(t, redis.Healthcheck(client)(context.Background()), redis.ErrHealthcheckFailed)
	})

	t.Run("empty url", func(t *testing.T) {
		t.Parallel()
		_, err := redis.Connect(context.Background(), redis.Config{})
		assert.ErrorIs(t, err, redis.ErrEmptyConnectionURL)
	})

	t.Run("malformed url", func(t *testing.T) {
		t.Parallel()
		_, err := redis.Connect(context.Background(), redis.Config{ConnectionURL: "http://nope"})
		assert.ErrorIs(t, err, redis.ErrFailedToParseRedisConnString)
	})

	t.Run("unreachable server", func(t *testing.T) {
		t.Parallel()
		mr := miniredis.RunT(t)
		addr := mr.Addr()
		mr.Close()

		_, err := redis.Connect(context.Background(), redis.Config{
			ConnectionURL:  "redis://" + addr + "/0",
			RetryAttempts:  2,
			RetryInterval:  10 * time.Millisecond,
			ConnectTimeout: 2 * time.Second,
		})
		assert.ErrorIs(t, err, redis.ErrRedisNotReady)
	})
}

func TestNewSessionCacheFromConfig(t *testing.T) {
	t.Parallel()
	mr, client := setupRedis(t)

	c := redis.NewSessionCacheFromConfig(client, redis.Config{
		KeyPrefix:      "app:sess:",
		EventChannel:   "app:events",
		LocalCacheSize: 8,
	})
	require.NoError(t, c.Put(context.Background(), "id-1", newSession("id-1"), time.Minute))
	assert.True(t, mr.Exists("app:sess:id-1"))
	assert.NotEmpty(t, c.NodeID())
}

func TestExpiryNotifications(t *testing.T) {
	t.Parallel()

	tests := []struct {
		flags string
		want  bool
	}{
		{flags: "", want: false},
		{flags: "Ex", want: true},
		{flags: "xE", want: true},
		{flags: "EA", want: true},
		{flags: "KEA", want: true},
		{flags: "Kx", want: false},
		{flags: "Eg$", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.flags, func(t *testing.T) {
			assert.Equal(t, tt.want, redis.ExpiryNotifications(tt.flags))
		})
	}
}

func TestCheckKeyspaceEvents_Unreachable(t *testing.T) {
	t.Parallel()
	mr, client := setupRedis(t)
	mr.Close()

	err := redis.CheckKeyspaceEvents(context.Background(), client)
	assert.ErrorIs(t, err, redis.ErrKeyspaceEventsUnknown)
}

package logger_test

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/clustersession/pkg/logger"
)

func TestGroup(t *testing.T) {
	attr := logger.Group("req", slog.String("id", "1"), slog.Int("n", 2))
	require.Equal(t, "req", attr.Key)
	require.Equal(t, slog.KindGroup, attr.Value.Kind())
	g := attr.Value.Group()
	require.Len(t, g, 2)
	assert.Equal(t, "id", g[0].Key)
	assert.Equal(t, "n", g[1].Key)
}

func TestError(t *testing.T) {
	err := errors.New("boom")
	attr := logger.Error(err)
	require.Equal(t, "error", attr.Key)
	assert.Equal(t, err, attr.Value.Any())

	empty := logger.Error(nil)
	assert.True(t, empty.Equal(slog.Attr{}))
}

func TestSessionID(t *testing.T) {
	attr := logger.SessionID("abc")
	require.Equal(t, "session_id", attr.Key)
	assert.Equal(t, "abc", attr.Value.String())

	assert.True(t, logger.SessionID("").Equal(slog.Attr{}))
}

func TestNodeID(t *testing.T) {
	attr := logger.NodeID("node-1")
	require.Equal(t, "node_id", attr.Key)
	assert.Equal(t, "node-1", attr.Value.String())
}

func TestUserID(t *testing.T) {
	attr := logger.UserID("123")
	require.Equal(t, "user_id", attr.Key)
	assert.Equal(t, "123", attr.Value.String())
	assert.True(t, logger.UserID("").Equal(slog.Attr{}))
}

func TestCacheEvent(t *testing.T) {
	attr := logger.CacheEvent("evicted", false)
	require.Equal(t, "cache_event", attr.Key)
	g := attr.Value.Group()
	require.Len(t, g, 2)
	assert.Equal(t, "evicted", g[0].Value.String())
	assert.False(t, g[1].Value.Bool())
}

func TestBackendAndCount(t *testing.T) {
	assert.Equal(t, "redis", logger.Backend("redis").Value.String())
	assert.Equal(t, int64(3), logger.Count(3).Value.Int64())
}

package config_test

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/clustersession/pkg/config"
	"github.com/dmitrymomot/clustersession/pkg/httpserver"
	"github.com/dmitrymomot/clustersession/pkg/redis"
	"github.com/dmitrymomot/clustersession/pkg/session"
)

type requiredConfig struct {
	NodeName string `env:"TEST_NODE_NAME,required"`
}

type singletonConfig struct {
	Value string `env:"TEST_SINGLETON_VALUE" envDefault:"default"`
}

func unsetAll(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestLoad_SessionDefaults(t *testing.T) {
	unsetAll(t, "SESSION_COOKIE_NAME", "SESSION_MAX_IDLE", "SESSION_TRACKING_MODES")
	config.ResetCache()

	var cfg session.Config
	require.NoError(t, config.Load(&cfg))

	assert.Equal(t, "sid", cfg.CookieName)
	assert.Equal(t, 30*time.Minute, cfg.MaxIdle)
	assert.Equal(t, []string{session.TrackingModeCookie}, cfg.TrackingModes)
	assert.True(t, cfg.CookieHTTPOnly)
}

func TestLoad_CachedPerType(t *testing.T) {
	config.ResetCache()
	t.Setenv("TEST_SINGLETON_VALUE", "first")

	var first singletonConfig
	require.NoError(t, config.Load(&first))

	t.Setenv("TEST_SINGLETON_VALUE", "second")

	var second singletonConfig
	require.NoError(t, config.Load(&second))
	assert.Equal(t, "first", second.Value)

	var reloaded singletonConfig
	require.NoError(t, config.ForceReloadConfig(&reloaded))
	assert.Equal(t, "second", reloaded.Value)
}

func TestLoad_MissingRequiredCanBeRetried(t *testing.T) {
	unsetAll(t, "TEST_NODE_NAME")
	config.ResetCache()

	var cfg requiredConfig
	err := config.Load(&cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrParsingConfig)

	t.Setenv("TEST_NODE_NAME", "node-a")
	require.NoError(t, config.Load(&cfg))
	assert.Equal(t, "node-a", cfg.NodeName)
}

func TestLoad_NilPointer(t *testing.T) {
	var cfg *session.Config
	assert.ErrorIs(t, config.Load(cfg), config.ErrNilPointer)
	assert.ErrorIs(t, config.ForceReloadConfig(cfg), config.ErrNilPointer)
}

func TestLoadEnv_LaterFilesOverride(t *testing.T) {
	unsetAll(t,
		"SESSION_COOKIE_NAME", "SESSION_MAX_IDLE", "SESSION_TRACKING_MODES",
		"REDIS_SESSION_PREFIX", "REDIS_KEYSPACE_EVENTS", "HTTP_ADDR",
	)
	config.ResetCache()

	require.NoError(t, config.LoadEnv("testdata/.env.cluster", "testdata/.env.node"))

	var sess session.Config
	require.NoError(t, config.Load(&sess))
	assert.Equal(t, "NODESID", sess.CookieName)
	assert.Equal(t, 45*time.Minute, sess.MaxIdle)

	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	var rc redis.Config
	require.NoError(t, config.Load(&rc))
	assert.Equal(t, "sess:", rc.KeyPrefix)
	assert.True(t, rc.KeyspaceEvents)

	var hc httpserver.Config
	require.NoError(t, config.Load(&hc))
	assert.Equal(t, ":9090", hc.Addr)
}

func TestLoadEnv_MissingFile(t *testing.T) {
	err := config.LoadEnv("testdata/missing.env")
	assert.ErrorIs(t, err, config.ErrLoadingEnvFile)

	assert.Panics(t, func() { config.MustLoadEnv("testdata/missing.env") })
	assert.NotPanics(t, func() { config.MustLoadEnv("testdata/.env.cluster") })
}

package session_test

import (
	"testing"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/clustersession/pkg/session"
)

func TestDefaultConfig(t *testing.T) {
	cfg := session.DefaultConfig()

	assert.Equal(t, "sid", cfg.CookieName)
	assert.True(t, cfg.CookieHTTPOnly)
	assert.False(t, cfg.CookieSecure)
	assert.Zero(t, cfg.CookieMaxAge)
	assert.Equal(t, 30*time.Minute, cfg.MaxIdle)
	assert.Equal(t, []string{session.TrackingModeCookie}, cfg.TrackingModes)
	assert.Equal(t, "jsessionid", cfg.IDPathParameterName)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_FromEnv(t *testing.T) {
	t.Setenv("SESSION_COOKIE_NAME", "JSESSIONID")
	t.Setenv("SESSION_COOKIE_MAX_AGE", "2h")
	t.Setenv("SESSION_MAX_IDLE", "45m")
	t.Setenv("SESSION_TRACKING_MODES", "cookie,url")

	var cfg session.Config
	require.NoError(t, env.Parse(&cfg))

	assert.Equal(t, "JSESSIONID", cfg.CookieName)
	assert.Equal(t, 2*time.Hour, cfg.CookieMaxAge)
	assert.Equal(t, 45*time.Minute, cfg.MaxIdle)
	assert.True(t, cfg.CookieHTTPOnly)
	assert.Equal(t, 10000, cfg.SnapshotCacheSize)
	assert.ErrorIs(t, cfg.Validate(), session.ErrUnsupportedTrackingMode)
}

func TestNewFromConfig(t *testing.T) {
	m, err := session.NewFromConfig(session.NewMemoryCache(), session.Config{
		CookieName:     "test-session",
		CookieHTTPOnly: true,
		MaxIdle:        15 * time.Minute,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	assert.Equal(t, "test-session", m.CookieConfig().Name)
	assert.Equal(t, 15*time.Minute, m.MaxInactiveInterval())
	assert.Equal(t, "jsessionid", m.IDPathParameterName(), "zero fields keep defaults")

	_, err = session.NewFromConfig(session.NewMemoryCache(), session.Config{TrackingModes: []string{"url"}})
	assert.ErrorIs(t, err, session.ErrUnsupportedTrackingMode)
}

func TestNewFromConfig_BooleansComeFromConfig(t *testing.T) {
	zero, err := session.NewFromConfig(session.NewMemoryCache(), session.Config{CookieName: "sid"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = zero.Close() })
	assert.False(t, zero.CookieConfig().HTTPOnly)

	cfg := session.DefaultConfig()
	cfg.CookieName = "sid"
	defaults, err := session.NewFromConfig(session.NewMemoryCache(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = defaults.Close() })
	assert.True(t, defaults.CookieConfig().HTTPOnly)
}

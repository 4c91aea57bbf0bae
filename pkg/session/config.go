package session

import (
	"strings"
	"time"
)

// TrackingModeCookie is the only supported session tracking mode
const TrackingModeCookie = "cookie"

// Config holds session configuration
type Config struct {
	// CookieName is the name of the session cookie (default: "sid")
	CookieName   string `env:"SESSION_COOKIE_NAME" envDefault:"sid"`
	CookieDomain string `env:"SESSION_COOKIE_DOMAIN"`
	// CookiePath falls back to the application context path, then "/"
	CookiePath string `env:"SESSION_COOKIE_PATH"`
	// CookieMaxAge is both the cookie lifetime and the renewal window.
	// Zero issues session cookies and never renews them.
	CookieMaxAge   time.Duration `env:"SESSION_COOKIE_MAX_AGE" envDefault:"0s"`
	CookieHTTPOnly bool          `env:"SESSION_COOKIE_HTTP_ONLY" envDefault:"true"`
	// CookieSecure is honoured only on requests that arrived over TLS
	CookieSecure bool `env:"SESSION_COOKIE_SECURE" envDefault:"false"`

	// MaxIdle is the idle timeout of new sessions and the cache TTL
	MaxIdle time.Duration `env:"SESSION_MAX_IDLE" envDefault:"30m"`

	TrackingModes []string `env:"SESSION_TRACKING_MODES" envDefault:"cookie" envSeparator:","`

	IDPathParameterName      string `env:"SESSION_ID_PATH_PARAMETER" envDefault:"jsessionid"`
	CheckingRemoteIDEncoding bool   `env:"SESSION_CHECK_REMOTE_ID_ENCODING" envDefault:"false"`

	// SnapshotCacheSize bounds the last-known sessions kept for destroyed
	// notifications whose events carry no value.
	SnapshotCacheSize int `env:"SESSION_SNAPSHOT_CACHE_SIZE" envDefault:"10000"`
}

// DefaultConfig returns default session configuration
func DefaultConfig() Config {
	return Config{
		CookieName:          "sid",
		CookieHTTPOnly:      true,
		MaxIdle:             30 * time.Minute,
		TrackingModes:       []string{TrackingModeCookie},
		IDPathParameterName: "jsessionid",
		SnapshotCacheSize:   10000,
	}
}

// Validate rejects configurations the manager cannot serve
func (c Config) Validate() error {
	for _, mode := range c.TrackingModes {
		if !strings.EqualFold(strings.TrimSpace(mode), TrackingModeCookie) {
			return ErrUnsupportedTrackingMode
		}
	}
	return nil
}

// CookieConfig is the effective cookie configuration of a manager
type CookieConfig struct {
	Name     string
	Domain   string
	Path     string
	MaxAge   time.Duration
	HTTPOnly bool
	Secure   bool
}

// NewFromConfig creates a Manager from cfg; opts are applied after it.
// Empty strings and zero durations or sizes keep their defaults. Boolean
// fields are always taken from cfg, so a zero Config turns HttpOnly off.
// Start from DefaultConfig to keep it on.
func NewFromConfig(cache Cache, cfg Config, opts ...Option) (*Manager, error) {
	configOpts := []Option{
		WithConfig(cfg),
	}

	configOpts = append(configOpts, opts...)

	return New(cache, configOpts...)
}

func (c Config) merge(base Config) Config {
	if c.CookieName != "" {
		base.CookieName = c.CookieName
	}
	if c.CookieDomain != "" {
		base.CookieDomain = c.CookieDomain
	}
	if c.CookiePath != "" {
		base.CookiePath = c.CookiePath
	}
	if c.CookieMaxAge > 0 {
		base.CookieMaxAge = c.CookieMaxAge
	}
	if c.MaxIdle != 0 {
		base.MaxIdle = c.MaxIdle
	}
	if len(c.TrackingModes) > 0 {
		base.TrackingModes = c.TrackingModes
	}
	if c.IDPathParameterName != "" {
		base.IDPathParameterName = c.IDPathParameterName
	}
	if c.SnapshotCacheSize > 0 {
		base.SnapshotCacheSize = c.SnapshotCacheSize
	}
	base.CookieHTTPOnly = c.CookieHTTPOnly
	base.CookieSecure = c.CookieSecure
	base.CheckingRemoteIDEncoding = c.CheckingRemoteIDEncoding
	return base
}

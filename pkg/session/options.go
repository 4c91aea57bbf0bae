package session

import (
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
)

// Option is a functional option for configuring the Manager
type Option func(*Manager)

// WithConfig applies cfg over the defaults. Zero-valued strings, durations
// and sizes keep their defaults; boolean fields are always taken from cfg.
func WithConfig(cfg Config) Option {
	return func(m *Manager) {
		m.config = cfg.merge(m.config)
	}
}

// WithCookieName sets the session cookie name
func WithCookieName(name string) Option {
	return func(m *Manager) {
		if name != "" {
			m.config.CookieName = name
		}
	}
}

// WithCookieMaxAge sets the cookie lifetime and renewal window
func WithCookieMaxAge(d time.Duration) Option {
	return func(m *Manager) {
		m.config.CookieMaxAge = d
	}
}

// WithMaxIdle sets the idle timeout of new sessions
func WithMaxIdle(d time.Duration) Option {
	return func(m *Manager) {
		m.config.MaxIdle = d
	}
}

// WithTrackingModes sets the requested tracking modes. Anything but
// TrackingModeCookie makes New fail.
func WithTrackingModes(modes ...string) Option {
	return func(m *Manager) {
		m.config.TrackingModes = modes
	}
}

// WithHost sets the node-local host attached to every restored session
func WithHost(host *Host) Option {
	return func(m *Manager) {
		if host != nil {
			m.host = host
		}
	}
}

// WithIDManager replaces the default id authority
func WithIDManager(ids *IDManager) Option {
	return func(m *Manager) {
		m.ids = ids
	}
}

// WithClock sets the clock used for access times and cookie renewal
func WithClock(clock clockwork.Clock) Option {
	return func(m *Manager) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithListeners registers listeners before the dispatcher starts, so they
// observe every event including those raised during startup.
func WithListeners(listeners ...Listener) Option {
	return func(m *Manager) {
		for _, l := range listeners {
			if l != nil {
				m.listeners = append(m.listeners, l)
			}
		}
	}
}

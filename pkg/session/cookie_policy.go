package session

import (
	"net/http"
	"time"

	"github.com/dmitrymomot/clustersession/pkg/cookie"
)

// Access records a request touching sess and applies the renewal policy.
// It returns the cookie to send when the renewal window has elapsed, nil
// otherwise. With CookieMaxAge zero the cookie never expires client-side
// and is never renewed.
func (m *Manager) Access(sess *Session, secure bool) *http.Cookie {
	now := m.now()
	sess.Access(now)

	maxAge := m.cfg().CookieMaxAge
	if maxAge <= 0 {
		return nil
	}
	if now.Before(sess.CookieIssuedAt().Add(maxAge)) {
		return nil
	}

	sess.setCookieIssuedAt(now)
	return m.SessionCookie(sess, m.host.ContextPath, secure)
}

// SessionCookie builds the cookie carrying the id of sess. The path falls
// back to contextPath and then to "/". The Secure attribute is set only
// when the request is secure and the configuration asks for it.
func (m *Manager) SessionCookie(sess *Session, contextPath string, secure bool) *http.Cookie {
	cfg := m.cfg()

	path := cfg.CookiePath
	if path == "" {
		path = contextPath
	}
	if path == "" {
		path = "/"
	}

	return m.cookies.Build(cfg.CookieName, sess.ID(),
		cookie.WithPath(path),
		cookie.WithDomain(cfg.CookieDomain),
		cookie.WithMaxAgeDuration(cfg.CookieMaxAge),
		cookie.WithHTTPOnly(cfg.CookieHTTPOnly),
		cookie.WithSecure(secure && cfg.CookieSecure),
		cookie.WithIssuedAt(sess.CookieIssuedAt()),
	)
}

// CookieConfig returns the effective cookie configuration
func (m *Manager) CookieConfig() CookieConfig {
	cfg := m.cfg()
	return CookieConfig{
		Name:     cfg.CookieName,
		Domain:   cfg.CookieDomain,
		Path:     cfg.CookiePath,
		MaxAge:   cfg.CookieMaxAge,
		HTTPOnly: cfg.CookieHTTPOnly,
		Secure:   cfg.CookieSecure,
	}
}

// HTTPOnly reports whether session cookies carry the HttpOnly attribute
func (m *Manager) HTTPOnly() bool {
	return m.cfg().CookieHTTPOnly
}

// RenewalWindow returns how long an issued cookie is considered fresh.
// Zero disables renewal.
func (m *Manager) RenewalWindow() time.Duration {
	return m.cfg().CookieMaxAge
}

// IDPathParameterName returns the name used when the id is encoded in a URL
// path parameter.
func (m *Manager) IDPathParameterName() string {
	return m.cfg().IDPathParameterName
}

// IDPathParameterNamePrefix returns the separator-qualified parameter, as
// in ";jsessionid=".
func (m *Manager) IDPathParameterNamePrefix() string {
	return ";" + m.IDPathParameterName() + "="
}

// CheckingRemoteIDEncoding reports whether ids encoded by remote nodes are
// checked before use.
func (m *Manager) CheckingRemoteIDEncoding() bool {
	return m.cfg().CheckingRemoteIDEncoding
}

// SetCheckingRemoteIDEncoding toggles CheckingRemoteIDEncoding
func (m *Manager) SetCheckingRemoteIDEncoding(v bool) {
	m.mu.Lock()
	m.config.CheckingRemoteIDEncoding = v
	m.mu.Unlock()
}

package cookie

import (
	"errors"
	"net/http"
	"strings"
	"time"
)

// Manager builds, reads and clears cookies from a shared set of defaults
type Manager struct {
	defaults Options
}

// New creates a Manager. Defaults are Path "/", HttpOnly and SameSite=Lax;
// opts override them.
func New(opts ...Option) *Manager {
	defaults := Options{
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	return &Manager{
		defaults: applyOptions(defaults, opts),
	}
}

// Defaults returns a copy of the options every cookie starts from
func (m *Manager) Defaults() Options {
	return m.defaults
}

// Build returns the cookie without writing it
func (m *Manager) Build(name, value string, opts ...Option) *http.Cookie {
	options := applyOptions(m.defaults, opts)

	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     options.Path,
		Domain:   options.Domain,
		MaxAge:   options.MaxAge,
		Secure:   options.Secure,
		HttpOnly: options.HttpOnly,
		SameSite: options.SameSite,
	}
	if options.MaxAge > 0 && !options.Now.IsZero() {
		c.Expires = options.Now.Add(time.Duration(options.MaxAge) * time.Second).UTC()
	}
	return c
}

// Set writes the cookie to w and returns it
func (m *Manager) Set(w http.ResponseWriter, name, value string, opts ...Option) (*http.Cookie, error) {
	if !validName(name) {
		return nil, ErrInvalidName
	}
	c := m.Build(name, value, opts...)
	http.SetCookie(w, c)
	return c, nil
}

// Get returns the value of the first cookie called name
func (m *Manager) Get(r *http.Request, name string) (string, error) {
	c, err := r.Cookie(name)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return "", ErrCookieNotFound
		}
		return "", err
	}
	return c.Value, nil
}

// Delete expires the cookie on the client. Path and domain have to match
// the ones it was set with, so pass the same overrides.
func (m *Manager) Delete(w http.ResponseWriter, name string, opts ...Option) {
	options := applyOptions(m.defaults, opts)
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     options.Path,
		Domain:   options.Domain,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: options.HttpOnly,
		SameSite: options.SameSite,
		Secure:   options.Secure,
	})
}

func validName(name string) bool {
	return name != "" && !strings.ContainsAny(name, " \t\r\n;,=\"")
}

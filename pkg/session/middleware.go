package session

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/dmitrymomot/clustersession/pkg/cookie"
	"github.com/dmitrymomot/clustersession/pkg/logger"
)

// Middleware resolves the session named by the request cookie, applies the
// access and renewal policy and completes the session once the handler
// returns. A request whose handler panics is never completed, so its
// changes are not flushed.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		st := &requestState{}

		if id, err := m.cookies.Get(r, m.cfg().CookieName); err == nil {
			sess, err := m.Session(r.Context(), id)
			switch {
			case err == nil:
				if c := m.Access(sess, isSecure(r)); c != nil {
					http.SetCookie(w, c)
				}
				st.set(sess)
			case errors.Is(err, ErrSessionNotFound):
				// stale cookie, Ensure replaces it
			default:
				m.logger.ErrorContext(r.Context(), "resolve session", logger.SessionID(id), logger.Error(err))
			}
		}

		ctx := context.WithValue(r.Context(), sessionContextKey{}, st)
		next.ServeHTTP(w, r.WithContext(ctx))

		if sess := st.get(); sess != nil {
			if err := m.Complete(context.WithoutCancel(ctx), sess); err != nil {
				m.logger.ErrorContext(ctx, "complete session", logger.SessionID(sess.ID()), logger.Error(err))
			}
		}
	})
}

// Ensure returns the session of the current request, creating one and
// issuing its cookie when there is none.
func (m *Manager) Ensure(ctx context.Context, w http.ResponseWriter, r *http.Request) (*Session, error) {
	if sess, ok := FromContext(ctx); ok {
		return sess, nil
	}

	sess, err := m.NewSession(ctx, r)
	if err != nil {
		return nil, err
	}
	http.SetCookie(w, m.SessionCookie(sess, m.host.ContextPath, isSecure(r)))

	if st, ok := stateFromContext(ctx); ok {
		st.set(sess)
	}
	return sess, nil
}

// Destroy invalidates the session of the current request and clears its
// cookie. It is a no-op when the request has no session.
func (m *Manager) Destroy(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	sess, ok := FromContext(ctx)
	if !ok {
		return nil
	}

	cfg := m.cfg()
	path := cfg.CookiePath
	if path == "" {
		path = m.host.ContextPath
	}
	if path == "" {
		path = "/"
	}
	m.cookies.Delete(w, cfg.CookieName, cookie.WithPath(path), cookie.WithDomain(cfg.CookieDomain))

	if st, ok := stateFromContext(ctx); ok {
		st.set(nil)
	}
	return m.Invalidate(ctx, sess)
}

// RequireAuth rejects requests whose session carries no authenticated
// principal. It has to run below Middleware.
func (m *Manager) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := PrincipalFromContext(r.Context()); !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// EnsureSession is a middleware that creates a session for every request
// that arrives without one. It has to run below Middleware.
func (m *Manager) EnsureSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := m.Ensure(r.Context(), w, r); err != nil {
			m.logger.ErrorContext(r.Context(), "ensure session", logger.Error(err))
			http.Error(w, "Session error", http.StatusInternalServerError)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isSecure(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

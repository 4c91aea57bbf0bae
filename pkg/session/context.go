package session

import (
	"context"
	"sync"
)

type sessionContextKey struct{}

// requestState is shared by the middleware and the handlers below it, so a
// session created or destroyed inside a handler is visible to Complete.
type requestState struct {
	mu   sync.Mutex
	sess *Session
}

func (s *requestState) get() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sess
}

func (s *requestState) set(sess *Session) {
	s.mu.Lock()
	s.sess = sess
	s.mu.Unlock()
}

func stateFromContext(ctx context.Context) (*requestState, bool) {
	st, ok := ctx.Value(sessionContextKey{}).(*requestState)
	return st, ok
}

// WithSession adds a session to the context
func WithSession(ctx context.Context, session *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, &requestState{sess: session})
}

// FromContext retrieves a valid session from the context
func FromContext(ctx context.Context) (*Session, bool) {
	st, ok := stateFromContext(ctx)
	if !ok {
		return nil, false
	}
	sess := st.get()
	if !sess.IsValid() {
		return nil, false
	}
	return sess, true
}

// MustFromContext retrieves a session from the context or panics
func MustFromContext(ctx context.Context) *Session {
	session, ok := FromContext(ctx)
	if !ok {
		panic("session: not found in context")
	}
	return session
}

// PrincipalFromContext returns the authenticated principal of the session
// in ctx, if any.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	session, ok := FromContext(ctx)
	if !ok {
		return nil, false
	}
	return PrincipalOf(session)
}

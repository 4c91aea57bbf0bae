package session

import (
	"slices"
	"sync"
)

const (
	// AuthenticatedKey is the attribute holding the session's *Principal
	AuthenticatedKey = "session.authenticated"
	// SecuredKey marks a session that was authenticated over a secure channel
	SecuredKey = "session.secured"
)

func init() {
	RegisterType(&Principal{})
}

// Principal is the replicated authentication handle of a session.
//
// The back-reference to the owning session is node-local: it is captured
// when the principal is bound and again when the session is restored on
// another node, so Logout works wherever the request lands.
type Principal struct {
	Method string
	UserID string
	Roles  []string

	mu      sync.Mutex
	session *Session
}

// NewPrincipal creates a principal authenticated with method
func NewPrincipal(method, userID string, roles ...string) *Principal {
	return &Principal{Method: method, UserID: userID, Roles: roles}
}

// HasRole reports whether the principal was granted role
func (p *Principal) HasRole(role string) bool {
	return slices.Contains(p.Roles, role)
}

// Session returns the session the principal is attached to on this node
func (p *Principal) Session() *Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session
}

// Logout removes the authentication attributes from the owning session.
// It does nothing when the principal was never attached.
func (p *Principal) Logout() {
	sess := p.Session()
	if sess == nil {
		return
	}
	sess.RemoveAttribute(AuthenticatedKey)
	sess.RemoveAttribute(SecuredKey)
}

func (p *Principal) ValueBound(e BindingEvent) {
	p.attach(e.Session)
}

func (p *Principal) ValueUnbound(BindingEvent) {}

func (p *Principal) SessionDidActivate(s *Session) {
	p.attach(s)
}

// attach keeps the first session seen
func (p *Principal) attach(s *Session) {
	p.mu.Lock()
	if p.session == nil {
		p.session = s
	}
	p.mu.Unlock()
}

// PrincipalOf returns the principal stored in sess
func PrincipalOf(sess *Session) (*Principal, bool) {
	if sess == nil {
		return nil, false
	}
	v, ok := sess.Attribute(AuthenticatedKey)
	if !ok {
		if v, ok = sess.invalidatedPrincipal(); !ok {
			return nil, false
		}
	}
	p, ok := v.(*Principal)
	return p, ok
}

// Authenticate stores p in sess. secured records that the credentials
// arrived over a secure channel.
func (m *Manager) Authenticate(sess *Session, p *Principal, secured bool) error {
	if !sess.IsValid() || p == nil {
		return ErrInvalidSession
	}
	sess.SetAttribute(AuthenticatedKey, p)
	if secured {
		sess.SetAttribute(SecuredKey, true)
	}
	return nil
}

package session

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"
	"time"
)

// Host describes the application that serves sessions on this node.
// It is node-local and never replicated.
type Host struct {
	NodeID      string
	ContextPath string
}

// Session is the unit of state replicated through the distributed cache.
//
// The replicated part (id, timestamps, idle timeout, attributes, validity)
// travels through a Codec. The cache handle, the host and the modified flag
// are node-local and have to be re-established with Restore whenever a node
// observes the session for the first time.
type Session struct {
	mu sync.RWMutex

	id             string
	createdAt      time.Time
	lastAccessedAt time.Time
	cookieIssuedAt time.Time
	maxIdle        time.Duration
	attributes     map[string]any
	valid          bool

	// principal is what AuthenticatedKey held when the session was
	// invalidated, kept for destroyed listeners on the invalidating node.
	principal any

	cache    Cache
	host     *Host
	modified bool
}

// NewSession creates a valid session created at now. The cookie is
// considered issued at creation time.
func NewSession(id string, maxIdle time.Duration, now time.Time) *Session {
	return &Session{
		id:             id,
		createdAt:      now,
		lastAccessedAt: now,
		cookieIssuedAt: now,
		maxIdle:        maxIdle,
		attributes:     make(map[string]any),
		valid:          true,
	}
}

// ID returns the immutable session identifier
func (s *Session) ID() string {
	return s.id
}

// CreatedAt returns the creation time
func (s *Session) CreatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.createdAt
}

// LastAccessedAt returns the time of the last Access call
func (s *Session) LastAccessedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastAccessedAt
}

// CookieIssuedAt returns when the session cookie was last issued
func (s *Session) CookieIssuedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cookieIssuedAt
}

// MaxInactiveInterval returns the idle timeout used as the cache TTL
func (s *Session) MaxInactiveInterval() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.maxIdle
}

// SetMaxInactiveInterval changes the idle timeout. The new value becomes
// the TTL on the next flush.
func (s *Session) SetMaxInactiveInterval(d time.Duration) {
	s.mu.Lock()
	s.maxIdle = d
	s.modified = true
	s.mu.Unlock()
}

// IsNew reports whether the session has not been accessed since creation
func (s *Session) IsNew() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.createdAt.Equal(s.lastAccessedAt)
}

// IsValid reports whether the session has not been invalidated
func (s *Session) IsValid() bool {
	if s == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.valid
}

// IsModified reports whether the session holds changes that were not
// flushed to the cache yet.
func (s *Session) IsModified() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.modified
}

// Host returns the node-local host the session was restored against
func (s *Session) Host() *Host {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.host
}

// Attribute returns the value stored under name
func (s *Session) Attribute(name string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.attributes[name]
	return v, ok
}

// invalidatedPrincipal returns the principal held at invalidation
func (s *Session) invalidatedPrincipal() (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.principal, !s.valid && s.principal != nil
}

// AttributeNames returns the attribute names in lexical order
func (s *Session) AttributeNames() []string {
	s.mu.RLock()
	names := slices.Collect(maps.Keys(s.attributes))
	s.mu.RUnlock()
	slices.Sort(names)
	return names
}

// SetAttribute stores value under name, replacing any previous value.
// The new value is bound before the previous one is unbound. A nil value
// removes the attribute.
func (s *Session) SetAttribute(name string, value any) {
	if value == nil {
		s.RemoveAttribute(name)
		return
	}

	s.mu.Lock()
	old, existed := s.attributes[name]
	s.attributes[name] = value
	s.modified = true
	s.mu.Unlock()

	s.bind(name, value)
	if existed {
		s.unbind(name, old)
	}
}

// RemoveAttribute deletes name and unbinds its value if it was present
func (s *Session) RemoveAttribute(name string) {
	s.mu.Lock()
	old, existed := s.attributes[name]
	delete(s.attributes, name)
	s.modified = true
	s.mu.Unlock()

	if existed {
		s.unbind(name, old)
	}
}

// Invalidate unbinds and drops every attribute, marks the session invalid
// and removes it from the cache. Calling it again is a no-op apart from a
// second, harmless cache removal.
func (s *Session) Invalidate(ctx context.Context) error {
	s.mu.Lock()
	cache := s.cache
	if cache == nil {
		s.mu.Unlock()
		return ErrNotRestored
	}
	attrs := s.attributes
	s.attributes = make(map[string]any)
	if p, ok := attrs[AuthenticatedKey]; ok {
		s.principal = p
	}
	s.valid = false
	s.modified = true
	s.mu.Unlock()

	for name, value := range attrs {
		s.unbind(name, value)
	}

	if err := cache.Remove(ctx, s.id); err != nil && !errors.Is(err, ErrSessionNotFound) {
		return err
	}
	return nil
}

// Restore attaches the node-local cache and host. It must run before any
// other operation when a node observes the session for the first time,
// either after creating it or after decoding it from a replication event.
func (s *Session) Restore(cache Cache, host *Host) {
	s.mu.Lock()
	s.cache = cache
	s.host = host
	values := slices.Collect(maps.Values(s.attributes))
	s.mu.Unlock()

	s.activate(values)
}

// Restored reports whether Restore has been called on this node
func (s *Session) Restored() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cache != nil
}

// Equal compares the replicated identity of two sessions. Node-local state
// never takes part in the comparison.
func (s *Session) Equal(other *Session) bool {
	if s == nil || other == nil {
		return s == other
	}
	if s == other {
		return true
	}
	return s.id == other.id && s.CreatedAt().Equal(other.CreatedAt())
}

// Access records a request touching the session at now and clears the
// modified flag. Timestamps never go backwards and an access always moves
// LastAccessedAt past CreatedAt, so IsNew flips on the first access even
// with a coarse clock.
func (s *Session) Access(now time.Time) {
	s.mu.Lock()
	if !now.After(s.lastAccessedAt) {
		now = s.lastAccessedAt.Add(time.Nanosecond)
	}
	s.lastAccessedAt = now
	s.modified = false
	s.mu.Unlock()
}

func (s *Session) setCookieIssuedAt(t time.Time) {
	s.mu.Lock()
	s.cookieIssuedAt = t
	s.modified = true
	s.mu.Unlock()
}

func (s *Session) markFlushed() {
	s.mu.Lock()
	s.modified = false
	s.mu.Unlock()
}

// snapshot copies the replicated fields under the read lock
func (s *Session) snapshot() wireSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return wireSession{
		ID:             s.id,
		CreatedAt:      s.createdAt,
		LastAccessedAt: s.lastAccessedAt,
		CookieIssuedAt: s.cookieIssuedAt,
		MaxIdle:        s.maxIdle,
		Attributes:     maps.Clone(s.attributes),
		Valid:          s.valid,
	}
}

func fromWire(w wireSession) *Session {
	attrs := w.Attributes
	if attrs == nil {
		attrs = make(map[string]any)
	}
	return &Session{
		id:             w.ID,
		createdAt:      w.CreatedAt,
		lastAccessedAt: w.LastAccessedAt,
		cookieIssuedAt: w.CookieIssuedAt,
		maxIdle:        w.MaxIdle,
		attributes:     attrs,
		valid:          w.Valid,
	}
}

// tombstone stands in for a session whose last state is unknown on this node
func tombstone(id string) *Session {
	return &Session{id: id, attributes: make(map[string]any)}
}

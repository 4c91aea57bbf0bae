package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
)

// IDGenerator produces candidate session ids
type IDGenerator func() (string, error)

// IDManager allocates session ids that are not in use anywhere in the
// cluster and registers sessions under them.
type IDManager struct {
	cache       Cache
	generate    IDGenerator
	maxAttempts int
}

// IDManagerOption configures an IDManager
type IDManagerOption func(*IDManager)

// WithIDGenerator replaces the random id generator
func WithIDGenerator(fn IDGenerator) IDManagerOption {
	return func(m *IDManager) {
		if fn != nil {
			m.generate = fn
		}
	}
}

// WithMaxIDAttempts bounds how many collisions NewID tolerates
func WithMaxIDAttempts(n int) IDManagerOption {
	return func(m *IDManager) {
		if n > 0 {
			m.maxAttempts = n
		}
	}
}

// NewIDManager creates an id authority backed by cache
func NewIDManager(cache Cache, opts ...IDManagerOption) *IDManager {
	m := &IDManager{
		cache:       cache,
		generate:    generateID,
		maxAttempts: 10,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// IDInUse reports whether a session is stored under id
func (m *IDManager) IDInUse(ctx context.Context, id string) (bool, error) {
	return m.cache.Contains(ctx, id)
}

// NewID returns a fresh id that is not in use. The request is accepted for
// parity with id schemes that derive ids from it; the default one ignores it.
func (m *IDManager) NewID(ctx context.Context, _ *http.Request) (string, error) {
	for range m.maxAttempts {
		id, err := m.generate()
		if err != nil {
			return "", errors.Join(ErrIDGeneration, err)
		}
		inUse, err := m.IDInUse(ctx, id)
		if err != nil {
			return "", err
		}
		if !inUse {
			return id, nil
		}
	}
	return "", ErrIDGeneration
}

// RegisterSession stores sess with its own idle timeout as TTL
func (m *IDManager) RegisterSession(ctx context.Context, sess *Session) error {
	if sess == nil {
		return ErrInvalidSession
	}
	return m.cache.Put(ctx, sess.ID(), sess, sess.MaxInactiveInterval())
}

// UnregisterSession removes sess from the cache without unbinding anything
func (m *IDManager) UnregisterSession(ctx context.Context, sess *Session) error {
	if sess == nil {
		return ErrInvalidSession
	}
	if err := m.cache.Remove(ctx, sess.ID()); err != nil && !errors.Is(err, ErrSessionNotFound) {
		return err
	}
	return nil
}

// InvalidateAll invalidates the session stored under id. It is a no-op
// when nothing is stored.
func (m *IDManager) InvalidateAll(ctx context.Context, id string) error {
	sess, err := m.cache.Get(ctx, id)
	if errors.Is(err, ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !sess.Restored() {
		sess.Restore(m.cache, nil)
	}
	return sess.Invalidate(ctx)
}

// ClusterID returns the cluster-wide id. Ids carry no node suffix.
func (m *IDManager) ClusterID(id string) string {
	return id
}

// NodeID returns the node-routed id. Ids carry no node suffix.
func (m *IDManager) NodeID(id string, _ *http.Request) string {
	return id
}

func generateID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

package session

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/dmitrymomot/clustersession/pkg/cache"
	"github.com/dmitrymomot/clustersession/pkg/cookie"
	"github.com/dmitrymomot/clustersession/pkg/logger"
)

// Manager creates, resolves and completes sessions stored in a distributed
// cache, and turns the cache's mutation events into listener callbacks.
//
// There is no cluster-wide lock: two nodes completing the same session
// concurrently both write, and the last write wins.
type Manager struct {
	cache   Cache
	ids     *IDManager
	cookies *cookie.Manager
	clock   clockwork.Clock
	logger  *slog.Logger
	host    *Host

	mu     sync.RWMutex
	config Config

	// last-known state per id, used when removal events carry no value
	snapshots *cache.LRUCache[string, *Session]

	listenersMu sync.RWMutex
	listeners   []Listener

	ctx          context.Context
	cancel       context.CancelFunc
	dispatchDone chan struct{}
	closeOnce    sync.Once
	closed       atomic.Bool
}

// New creates a manager on top of c and starts consuming its events.
// Close must be called to stop the dispatcher.
func New(c Cache, opts ...Option) (*Manager, error) {
	if c == nil {
		return nil, ErrNilCache
	}

	m := &Manager{
		cache:        c,
		config:       DefaultConfig(),
		clock:        clockwork.NewRealClock(),
		logger:       logger.Nop(),
		host:         &Host{},
		dispatchDone: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(m)
	}

	if err := m.config.Validate(); err != nil {
		return nil, err
	}

	if m.ids == nil {
		m.ids = NewIDManager(c)
	}

	m.cookies = cookie.New(
		cookie.WithDomain(m.config.CookieDomain),
		cookie.WithHTTPOnly(m.config.CookieHTTPOnly),
	)
	m.snapshots = cache.NewLRUCache[string, *Session](m.config.SnapshotCacheSize)
	m.snapshots.SetEvictCallback(func(id string, _ *Session) {
		m.logger.Debug("session snapshot evicted", logger.SessionID(id))
	})

	m.ctx, m.cancel = context.WithCancel(context.Background())
	events, err := c.Subscribe(m.ctx)
	if err != nil {
		m.cancel()
		return nil, err
	}

	go m.dispatch(events)

	m.logger.Debug("session manager started",
		logger.Component("session"),
		logger.NodeID(m.host.NodeID),
	)

	return m, nil
}

// NewSession allocates a fresh id, stores a new session under it and
// returns the session restored on this node.
func (m *Manager) NewSession(ctx context.Context, r *http.Request) (*Session, error) {
	if m.closed.Load() {
		return nil, ErrManagerClosed
	}

	id, err := m.ids.NewID(ctx, r)
	if err != nil {
		return nil, err
	}

	sess := NewSession(id, m.MaxInactiveInterval(), m.clock.Now())
	sess.Restore(m.cache, m.host)
	m.snapshots.Put(id, sess)

	if err := m.ids.RegisterSession(ctx, sess); err != nil {
		m.snapshots.Remove(id)
		return nil, err
	}

	return sess, nil
}

// Session returns the live session stored under id, restoring it on this
// node if needed. Missing, expired and invalidated sessions all yield
// ErrSessionNotFound.
func (m *Manager) Session(ctx context.Context, id string) (*Session, error) {
	if m.closed.Load() {
		return nil, ErrManagerClosed
	}
	if id == "" {
		return nil, ErrSessionNotFound
	}

	sess, err := m.cache.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !sess.IsValid() {
		return nil, ErrSessionNotFound
	}
	if !sess.Restored() {
		sess.Restore(m.cache, m.host)
	}
	m.snapshots.Put(id, sess)

	return sess, nil
}

// Complete flushes sess at the end of a request. Only valid sessions with
// unflushed changes are written, with their idle timeout as the new TTL.
// A session that expired or was removed meanwhile is not resurrected.
func (m *Manager) Complete(ctx context.Context, sess *Session) error {
	if sess == nil || !sess.IsValid() || !sess.IsModified() {
		return nil
	}

	replaced, err := m.cache.Replace(ctx, sess.ID(), sess, sess.MaxInactiveInterval())
	if err != nil {
		return err
	}
	if !replaced {
		m.logger.DebugContext(ctx, "session gone before completion", logger.SessionID(sess.ID()))
		return nil
	}

	sess.markFlushed()
	m.snapshots.Put(sess.ID(), sess)
	return nil
}

// Invalidate invalidates sess. Listeners learn about it from the cache
// event, like on every other node.
func (m *Manager) Invalidate(ctx context.Context, sess *Session) error {
	if sess == nil {
		return nil
	}
	if !sess.Restored() {
		sess.Restore(m.cache, m.host)
	}
	return sess.Invalidate(ctx)
}

// MaxInactiveInterval returns the idle timeout given to new sessions
func (m *Manager) MaxInactiveInterval() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config.MaxIdle
}

// SetMaxInactiveInterval changes the idle timeout given to new sessions.
// Existing sessions keep theirs.
func (m *Manager) SetMaxInactiveInterval(d time.Duration) {
	m.mu.Lock()
	m.config.MaxIdle = d
	m.mu.Unlock()
}

// IDManager returns the id authority
func (m *Manager) IDManager() *IDManager {
	return m.ids
}

// Cache returns the cache the manager works against
func (m *Manager) Cache() Cache {
	return m.cache
}

// Host returns the node-local host attached to restored sessions
func (m *Manager) Host() *Host {
	return m.host
}

// Close stops the dispatcher. Sessions stay in the cache.
func (m *Manager) Close() error {
	m.closeOnce.Do(func() {
		m.closed.Store(true)
		m.cancel()
		<-m.dispatchDone
		m.snapshots.SetEvictCallback(nil)
		m.snapshots.Clear()
	})
	return nil
}

func (m *Manager) now() time.Time {
	return m.clock.Now()
}

func (m *Manager) cfg() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

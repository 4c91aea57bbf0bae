package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/dmitrymomot/clustersession/pkg/broadcast"
	"github.com/dmitrymomot/clustersession/pkg/logger"
)

// MemoryCluster is an in-process replicated cache. Every node joining the
// cluster gets its own MemoryCache view: entries are shared as encoded bytes,
// each node keeps its own decoded copies, and every mutation is fanned out to
// all nodes with the id of the node that performed it.
//
// It backs tests and single-binary deployments; production clusters use the
// redis or pg adapters.
type MemoryCluster struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	version uint64

	codec       Codec
	clock       clockwork.Clock
	logger      *slog.Logger
	bufferSize  int
	bus         *broadcast.MemoryBroadcaster[clusterEvent]
	ticker      clockwork.Ticker
	done        chan struct{}
	closeOnce   sync.Once
	cleanupStop sync.WaitGroup
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
	version   uint64
}

func (e *memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// clusterEvent is what travels on the bus. live is only read by the node
// whose id equals origin.
type clusterEvent struct {
	kind    EventKind
	key     string
	data    []byte
	version uint64
	origin  string
	live    *Session
}

// MemoryOption configures a MemoryCluster
type MemoryOption func(*memoryConfig)

type memoryConfig struct {
	codec           Codec
	clock           clockwork.Clock
	logger          *slog.Logger
	cleanupInterval time.Duration
	bufferSize      int
}

// WithMemoryCodec sets the codec used for stored entries (default GobCodec)
func WithMemoryCodec(codec Codec) MemoryOption {
	return func(c *memoryConfig) {
		if codec != nil {
			c.codec = codec
		}
	}
}

// WithMemoryClock sets the clock used for TTL bookkeeping
func WithMemoryClock(clock clockwork.Clock) MemoryOption {
	return func(c *memoryConfig) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithMemoryLogger sets the logger
func WithMemoryLogger(l *slog.Logger) MemoryOption {
	return func(c *memoryConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithCleanupInterval enables the background sweep of expired entries.
// Expired entries are also evicted lazily when read.
func WithCleanupInterval(d time.Duration) MemoryOption {
	return func(c *memoryConfig) {
		c.cleanupInterval = d
	}
}

// WithEventBuffer sets the per-node event buffer
func WithEventBuffer(n int) MemoryOption {
	return func(c *memoryConfig) {
		c.bufferSize = n
	}
}

// NewMemoryCluster creates an empty cluster
func NewMemoryCluster(opts ...MemoryOption) *MemoryCluster {
	cfg := memoryConfig{
		codec:      GobCodec{},
		clock:      clockwork.NewRealClock(),
		logger:     logger.Nop(),
		bufferSize: 1024,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	c := &MemoryCluster{
		entries:    make(map[string]*memoryEntry),
		codec:      cfg.codec,
		clock:      cfg.clock,
		logger:     cfg.logger,
		bufferSize: cfg.bufferSize,
		done:       make(chan struct{}),
	}
	c.bus = broadcast.NewMemoryBroadcaster[clusterEvent](cfg.bufferSize, broadcast.WithDropHandler(func() {
		c.logger.Warn("session event dropped for slow node", logger.Backend("memory"))
	}))

	if cfg.cleanupInterval > 0 {
		c.ticker = c.clock.NewTicker(cfg.cleanupInterval)
		c.cleanupStop.Add(1)
		go c.cleanupLoop()
	}

	return c
}

// Join adds a node to the cluster and returns its cache view
func (c *MemoryCluster) Join() *MemoryCache {
	return &MemoryCache{
		id:      uuid.NewString(),
		cluster: c,
		local:   make(map[string]localEntry),
	}
}

// Len returns the number of stored entries, expired ones included until
// they are swept.
func (c *MemoryCluster) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// DeleteExpired evicts every expired entry and returns how many were evicted
func (c *MemoryCluster) DeleteExpired(ctx context.Context) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	n := 0
	for key, e := range c.entries {
		if e.expired(now) {
			c.evictLocked(ctx, key, e)
			n++
		}
	}
	return n
}

// Close stops the cleanup loop and closes every node subscription
func (c *MemoryCluster) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.ticker != nil {
			c.ticker.Stop()
		}
		c.cleanupStop.Wait()
		_ = c.bus.Close()
	})
	return nil
}

func (c *MemoryCluster) cleanupLoop() {
	defer c.cleanupStop.Done()
	for {
		select {
		case <-c.ticker.Chan():
			if n := c.DeleteExpired(context.Background()); n > 0 {
				c.logger.Debug("expired sessions evicted", logger.Backend("memory"), logger.Count(n))
			}
		case <-c.done:
			return
		}
	}
}

func (c *MemoryCluster) lookup(ctx context.Context, key string) (memoryEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if e.expired(c.clock.Now()) {
		c.evictLocked(ctx, key, e)
		return memoryEntry{}, false
	}
	return *e, true
}

// store writes data under key. With mustExist it behaves as a conditional
// replace. It reports the new version and whether anything was written.
func (c *MemoryCluster) store(ctx context.Context, key string, data []byte, ttl time.Duration, origin string, live *Session, mustExist bool) (uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	e, exists := c.entries[key]
	if exists && e.expired(now) {
		c.evictLocked(ctx, key, e)
		exists = false
	}
	if mustExist && !exists {
		return 0, false
	}

	c.version++
	entry := &memoryEntry{data: data, version: c.version}
	if ttl > 0 {
		entry.expiresAt = now.Add(ttl)
	}
	c.entries[key] = entry

	if !exists {
		c.publishLocked(ctx, clusterEvent{
			kind:    EntryCreated,
			key:     key,
			data:    data,
			version: entry.version,
			origin:  origin,
			live:    live,
		})
	}
	return entry.version, true
}

func (c *MemoryCluster) remove(ctx context.Context, key, origin string, live *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return
	}
	delete(c.entries, key)
	c.version++
	c.publishLocked(ctx, clusterEvent{
		kind:    EntryRemoved,
		key:     key,
		data:    e.data,
		version: c.version,
		origin:  origin,
		live:    live,
	})
}

func (c *MemoryCluster) evictLocked(ctx context.Context, key string, e *memoryEntry) {
	delete(c.entries, key)
	c.version++
	c.publishLocked(ctx, clusterEvent{
		kind:    EntryEvicted,
		key:     key,
		data:    e.data,
		version: c.version,
	})
}

// publishLocked runs under c.mu so that events leave in mutation order
func (c *MemoryCluster) publishLocked(ctx context.Context, ev clusterEvent) {
	_ = c.bus.Broadcast(ctx, broadcast.Message[clusterEvent]{Data: ev})
}

// MemoryCache is one node's view of a MemoryCluster. It implements Cache.
// Get returns the same *Session for as long as no other node rewrote the
// entry, which mirrors a near cache in front of a replicated store.
type MemoryCache struct {
	id      string
	cluster *MemoryCluster

	mu    sync.Mutex
	local map[string]localEntry
}

type localEntry struct {
	sess    *Session
	version uint64
}

// NewMemoryCache returns a single-node cache backed by its own cluster
func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	return NewMemoryCluster(opts...).Join()
}

// NodeID returns the id used to tag mutations made by this node
func (m *MemoryCache) NodeID() string {
	return m.id
}

// Cluster returns the cluster this node belongs to
func (m *MemoryCache) Cluster() *MemoryCluster {
	return m.cluster
}

// Get returns the session stored under id
func (m *MemoryCache) Get(ctx context.Context, id string) (*Session, error) {
	e, ok := m.cluster.lookup(ctx, id)
	if !ok {
		m.forget(id, ^uint64(0))
		return nil, ErrSessionNotFound
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if l, ok := m.local[id]; ok && l.version == e.version {
		return l.sess, nil
	}

	sess, err := m.cluster.codec.Decode(e.data)
	if err != nil {
		return nil, err
	}
	m.local[id] = localEntry{sess: sess, version: e.version}
	return sess, nil
}

// Put stores s under id with the given ttl
func (m *MemoryCache) Put(ctx context.Context, id string, s *Session, ttl time.Duration) error {
	data, err := m.encode(id, s)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	version, _ := m.cluster.store(ctx, id, data, ttl, m.id, s, false)
	m.local[id] = localEntry{sess: s, version: version}
	return nil
}

// Replace overwrites id only while it is still stored
func (m *MemoryCache) Replace(ctx context.Context, id string, s *Session, ttl time.Duration) (bool, error) {
	data, err := m.encode(id, s)
	if err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	version, ok := m.cluster.store(ctx, id, data, ttl, m.id, s, true)
	if !ok {
		delete(m.local, id)
		return false, nil
	}
	m.local[id] = localEntry{sess: s, version: version}
	return true, nil
}

// Remove deletes id from the cluster
func (m *MemoryCache) Remove(ctx context.Context, id string) error {
	m.mu.Lock()
	live := m.local[id].sess
	delete(m.local, id)
	m.mu.Unlock()

	m.cluster.remove(ctx, id, m.id, live)
	return nil
}

// Contains reports whether a live entry exists under id
func (m *MemoryCache) Contains(ctx context.Context, id string) (bool, error) {
	_, ok := m.cluster.lookup(ctx, id)
	return ok, nil
}

// Subscribe delivers every cluster mutation until ctx is done
func (m *MemoryCache) Subscribe(ctx context.Context) (<-chan CacheEvent, error) {
	sub := m.cluster.bus.Subscribe(ctx)
	out := make(chan CacheEvent, m.cluster.bufferSize)

	go func() {
		defer close(out)
		defer sub.Close()
		for {
			select {
			case msg, ok := <-sub.Receive(ctx):
				if !ok {
					return
				}
				ev, ok := m.translate(msg.Data)
				if !ok {
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

func (m *MemoryCache) translate(ev clusterEvent) (CacheEvent, bool) {
	local := ev.origin == m.id
	out := CacheEvent{Kind: ev.kind, Key: ev.key, OriginLocal: local}

	if local && ev.live != nil {
		out.Value = ev.live
		if ev.kind != EntryCreated {
			m.forget(ev.key, ev.version)
		}
		return out, true
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	known, haveKnown := m.local[ev.key]

	switch ev.kind {
	case EntryCreated:
		if haveKnown && known.version >= ev.version {
			out.Value = known.sess
			return out, true
		}
		sess, err := m.cluster.codec.Decode(ev.data)
		if err != nil {
			m.cluster.logger.Error("decode replicated session", logger.SessionID(ev.key), logger.NodeID(m.id), logger.Error(err))
			return out, false
		}
		m.local[ev.key] = localEntry{sess: sess, version: ev.version}
		out.Value = sess
	default:
		if haveKnown {
			out.Value = known.sess
			if known.version <= ev.version {
				delete(m.local, ev.key)
			}
			return out, true
		}
		if sess, err := m.cluster.codec.Decode(ev.data); err == nil {
			out.Value = sess
		}
	}
	return out, true
}

func (m *MemoryCache) forget(id string, upTo uint64) {
	m.mu.Lock()
	if l, ok := m.local[id]; ok && l.version <= upTo {
		delete(m.local, id)
	}
	m.mu.Unlock()
}

func (m *MemoryCache) encode(id string, s *Session) ([]byte, error) {
	if s == nil || id == "" {
		return nil, ErrInvalidSession
	}
	data, err := m.cluster.codec.Encode(s)
	if err != nil {
		return nil, errors.Join(ErrStoreUnavailable, err)
	}
	return data, nil
}

package pg

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"

	"github.com/dmitrymomot/clustersession/pkg/cache"
	"github.com/dmitrymomot/clustersession/pkg/logger"
	"github.com/dmitrymomot/clustersession/pkg/session"
)

const (
	defaultSessionChannel  = "session_events"
	defaultSweepInterval   = time.Minute
	defaultListenRetryWait = time.Second
	defaultLocalCacheSize  = 10000

	// NOTIFY payloads are capped at 8000 bytes; larger values are left out
	// and receivers fall back to reading the row.
	maxNotifyPayload = 7900
)

const (
	selectLiveSQL = `SELECT data FROM session_cache
WHERE id = $1 AND (expires_at IS NULL OR expires_at > $2)`

	containsLiveSQL = `SELECT EXISTS (
	SELECT 1 FROM session_cache WHERE id = $1 AND (expires_at IS NULL OR expires_at > $2)
)`

	deleteExpiredOneSQL = `DELETE FROM session_cache
WHERE id = $1 AND expires_at IS NOT NULL AND expires_at <= $2
RETURNING data`

	upsertSQL = `INSERT INTO session_cache (id, data, expires_at, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (id) DO UPDATE
SET data = EXCLUDED.data, expires_at = EXCLUDED.expires_at, updated_at = now()
RETURNING (xmax = 0)`

	replaceLiveSQL = `UPDATE session_cache
SET data = $2, expires_at = $3, updated_at = now()
WHERE id = $1 AND (expires_at IS NULL OR expires_at > $4)`

	deleteSQL = `DELETE FROM session_cache WHERE id = $1 RETURNING data, expires_at`

	sweepSQL = `DELETE FROM session_cache
WHERE expires_at IS NOT NULL AND expires_at <= $1
RETURNING id, data`

	notifySQL = `SELECT pg_notify($1, $2)`
)

// SessionCache implements session.Cache on a PostgreSQL table.
//
// Expiry is evaluated against the cache's clock on every read, so an
// expired row is invisible before the sweeper deletes it. Mutations are
// announced with NOTIFY inside the writing transaction, which delivers
// them to every listening node in commit order.
type SessionCache struct {
	pool            *pgxpool.Pool
	codec           session.Codec
	clock           clockwork.Clock
	logger          *slog.Logger
	nodeID          string
	channel         string
	sweepInterval   time.Duration
	listenRetryWait time.Duration
	local           *cache.LRUCache[string, localEntry]
}

type localEntry struct {
	sess *session.Session
	data []byte
}

type eventMessage struct {
	Kind   string `json:"kind"`
	Key    string `json:"key"`
	Origin string `json:"origin"`
	Value  []byte `json:"value,omitempty"`
}

// SessionCacheOption configures a SessionCache
type SessionCacheOption func(*SessionCache)

// WithCodec sets the codec used for stored rows (default session.GobCodec)
func WithCodec(codec session.Codec) SessionCacheOption {
	return func(c *SessionCache) {
		if codec != nil {
			c.codec = codec
		}
	}
}

// WithClock sets the clock used for expiry
func WithClock(clock clockwork.Clock) SessionCacheOption {
	return func(c *SessionCache) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) SessionCacheOption {
	return func(c *SessionCache) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithNodeID sets the id used to recognise this node's own events
func WithNodeID(id string) SessionCacheOption {
	return func(c *SessionCache) {
		if id != "" {
			c.nodeID = id
		}
	}
}

// WithChannel sets the LISTEN/NOTIFY channel
func WithChannel(channel string) SessionCacheOption {
	return func(c *SessionCache) {
		if channel != "" {
			c.channel = channel
		}
	}
}

// WithSweepInterval sets how often Run deletes expired rows
func WithSweepInterval(d time.Duration) SessionCacheOption {
	return func(c *SessionCache) {
		if d > 0 {
			c.sweepInterval = d
		}
	}
}

// WithListenRetryWait sets the pause before a lost LISTEN connection is
// re-established
func WithListenRetryWait(d time.Duration) SessionCacheOption {
	return func(c *SessionCache) {
		if d > 0 {
			c.listenRetryWait = d
		}
	}
}

// WithLocalCacheSize bounds the decoded sessions kept on this node
func WithLocalCacheSize(size int) SessionCacheOption {
	return func(c *SessionCache) {
		if size > 0 {
			c.local = cache.NewLRUCache[string, localEntry](size)
		}
	}
}

// NewSessionCache creates a session cache on pool. The session_cache table
// must exist; see Migrate.
func NewSessionCache(pool *pgxpool.Pool, opts ...SessionCacheOption) *SessionCache {
	c := &SessionCache{
		pool:            pool,
		codec:           session.GobCodec{},
		clock:           clockwork.NewRealClock(),
		logger:          logger.Nop(),
		nodeID:          uuid.NewString(),
		channel:         defaultSessionChannel,
		sweepInterval:   defaultSweepInterval,
		listenRetryWait: defaultListenRetryWait,
		local:           cache.NewLRUCache[string, localEntry](defaultLocalCacheSize),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(logger.Backend("postgres"), logger.NodeID(c.nodeID))
	return c
}

// NewSessionCacheFromConfig creates a session cache using the session
// settings of cfg. opts are applied after the config.
func NewSessionCacheFromConfig(pool *pgxpool.Pool, cfg Config, opts ...SessionCacheOption) *SessionCache {
	configOpts := []SessionCacheOption{
		WithChannel(cfg.SessionChannel),
		WithSweepInterval(cfg.SweepInterval),
		WithListenRetryWait(cfg.ListenRetryWait),
		WithLocalCacheSize(cfg.LocalCacheSize),
	}
	return NewSessionCache(pool, append(configOpts, opts...)...)
}

// NodeID returns the id this cache tags its events with
func (c *SessionCache) NodeID() string {
	return c.nodeID
}

func (c *SessionCache) Get(ctx context.Context, id string) (*session.Session, error) {
	if id == "" {
		return nil, session.ErrSessionNotFound
	}

	var data []byte
	err := c.pool.QueryRow(ctx, selectLiveSQL, id, c.clock.Now()).Scan(&data)
	if IsNotFoundError(err) {
		c.local.Remove(id)
		return nil, session.ErrSessionNotFound
	}
	if err != nil {
		return nil, errors.Join(session.ErrStoreUnavailable, err)
	}

	if entry, ok := c.local.Get(id); ok && bytes.Equal(entry.data, data) {
		return entry.sess, nil
	}

	sess, err := c.codec.Decode(data)
	if err != nil {
		return nil, err
	}
	c.local.Put(id, localEntry{sess: sess, data: data})
	return sess, nil
}

// Put upserts s. An expired row still awaiting the sweeper is evicted
// first, so the write is announced as a creation.
func (c *SessionCache) Put(ctx context.Context, id string, s *session.Session, ttl time.Duration) error {
	if id == "" || s == nil {
		return session.ErrInvalidSession
	}

	data, err := c.codec.Encode(s)
	if err != nil {
		return err
	}

	now := c.clock.Now()
	err = pgx.BeginFunc(ctx, c.pool, func(tx pgx.Tx) error {
		var stale []byte
		switch err := tx.QueryRow(ctx, deleteExpiredOneSQL, id, now).Scan(&stale); {
		case err == nil:
			if err := c.notify(ctx, tx, session.EntryEvicted, id, stale); err != nil {
				return err
			}
		case !IsNotFoundError(err):
			return err
		}

		var created bool
		if err := tx.QueryRow(ctx, upsertSQL, id, data, expiry(now, ttl)).Scan(&created); err != nil {
			return err
		}
		if created {
			return c.notify(ctx, tx, session.EntryCreated, id, data)
		}
		return nil
	})
	if err != nil {
		return errors.Join(session.ErrStoreUnavailable, err)
	}

	c.local.Put(id, localEntry{sess: s, data: data})
	return nil
}

func (c *SessionCache) Replace(ctx context.Context, id string, s *session.Session, ttl time.Duration) (bool, error) {
	if id == "" || s == nil {
		return false, session.ErrInvalidSession
	}

	data, err := c.codec.Encode(s)
	if err != nil {
		return false, err
	}

	now := c.clock.Now()
	tag, err := c.pool.Exec(ctx, replaceLiveSQL, id, data, expiry(now, ttl), now)
	if err != nil {
		return false, errors.Join(session.ErrStoreUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		c.local.Remove(id)
		return false, nil
	}

	c.local.Put(id, localEntry{sess: s, data: data})
	return true, nil
}

// Remove deletes id. A row that had already expired is announced as an
// eviction rather than a removal.
func (c *SessionCache) Remove(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}

	now := c.clock.Now()
	err := pgx.BeginFunc(ctx, c.pool, func(tx pgx.Tx) error {
		var (
			data      []byte
			expiresAt *time.Time
		)
		err := tx.QueryRow(ctx, deleteSQL, id).Scan(&data, &expiresAt)
		if IsNotFoundError(err) {
			return nil
		}
		if err != nil {
			return err
		}

		kind := session.EntryRemoved
		if expiresAt != nil && !now.Before(*expiresAt) {
			kind = session.EntryEvicted
		}
		return c.notify(ctx, tx, kind, id, data)
	})
	if err != nil {
		return errors.Join(session.ErrStoreUnavailable, err)
	}
	return nil
}

func (c *SessionCache) Contains(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, nil
	}
	var ok bool
	if err := c.pool.QueryRow(ctx, containsLiveSQL, id, c.clock.Now()).Scan(&ok); err != nil {
		return false, errors.Join(session.ErrStoreUnavailable, err)
	}
	return ok, nil
}

// DeleteExpired removes every expired row, announces each eviction and
// returns how many rows were removed.
func (c *SessionCache) DeleteExpired(ctx context.Context) (int, error) {
	type expiredRow struct {
		ID   string
		Data []byte
	}

	var removed []expiredRow
	err := pgx.BeginFunc(ctx, c.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, sweepSQL, c.clock.Now())
		if err != nil {
			return err
		}
		removed, err = pgx.CollectRows(rows, pgx.RowToStructByPos[expiredRow])
		if err != nil {
			return err
		}
		for _, r := range removed {
			if err := c.notify(ctx, tx, session.EntryEvicted, r.ID, r.Data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, errors.Join(session.ErrStoreUnavailable, err)
	}
	return len(removed), nil
}

// Run sweeps expired rows every sweep interval until ctx is done. Several
// nodes may run it; each row is deleted, and announced, once.
func (c *SessionCache) Run(ctx context.Context) error {
	ticker := c.clock.NewTicker(c.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
			n, err := c.DeleteExpired(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				c.logger.ErrorContext(ctx, "session sweep failed", logger.Error(err))
				continue
			}
			if n > 0 {
				c.logger.DebugContext(ctx, "expired sessions swept", logger.Count(n))
			}
		}
	}
}

// Subscribe LISTENs on the event channel on a dedicated pool connection.
// A lost connection is re-established until ctx is done; notifications sent
// while it was down are not replayed.
func (c *SessionCache) Subscribe(ctx context.Context) (<-chan session.CacheEvent, error) {
	conn, err := c.listen(ctx)
	if err != nil {
		return nil, errors.Join(session.ErrStoreUnavailable, err)
	}

	out := make(chan session.CacheEvent, 256)
	go c.consume(ctx, conn, out)
	return out, nil
}

func (c *SessionCache) listen(ctx context.Context) (*pgxpool.Conn, error) {
	conn, err := c.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{c.channel}.Sanitize()); err != nil {
		conn.Release()
		return nil, err
	}
	return conn, nil
}

func (c *SessionCache) consume(ctx context.Context, conn *pgxpool.Conn, out chan<- session.CacheEvent) {
	defer close(out)

	for {
		err := c.drain(ctx, conn, out)
		release(conn)
		if ctx.Err() != nil {
			return
		}
		c.logger.WarnContext(ctx, "session event listener lost", logger.Error(err))

		for conn = nil; conn == nil; {
			select {
			case <-ctx.Done():
				return
			case <-c.clock.After(c.listenRetryWait):
			}
			if conn, err = c.listen(ctx); err != nil {
				c.logger.WarnContext(ctx, "session event listener reconnect failed", logger.Error(err))
			}
		}
	}
}

func (c *SessionCache) drain(ctx context.Context, conn *pgxpool.Conn, out chan<- session.CacheEvent) error {
	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		ev, ok := c.translate(ctx, n.Payload)
		if !ok {
			continue
		}
		select {
		case out <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func release(conn *pgxpool.Conn) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, _ = conn.Exec(ctx, "UNLISTEN *")
	conn.Release()
}

func (c *SessionCache) translate(ctx context.Context, payload string) (session.CacheEvent, bool) {
	var m eventMessage
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		c.logger.WarnContext(ctx, "malformed session event", logger.Error(err))
		return session.CacheEvent{}, false
	}

	ev := session.CacheEvent{Key: m.Key, OriginLocal: m.Origin == c.nodeID}
	entry, haveLocal := c.local.Peek(m.Key)

	switch m.Kind {
	case session.EntryCreated.String():
		ev.Kind = session.EntryCreated
		if haveLocal && (m.Value == nil || bytes.Equal(entry.data, m.Value)) {
			ev.Value = entry.sess
			return ev, true
		}
		if m.Value == nil {
			if sess, err := c.Get(ctx, m.Key); err == nil {
				ev.Value = sess
			}
			return ev, true
		}
		sess, err := c.codec.Decode(m.Value)
		if err != nil {
			c.logger.WarnContext(ctx, "undecodable session event", logger.SessionID(m.Key), logger.Error(err))
			return ev, true
		}
		c.local.Put(m.Key, localEntry{sess: sess, data: m.Value})
		ev.Value = sess

	case session.EntryRemoved.String(), session.EntryEvicted.String():
		ev.Kind = session.EntryRemoved
		if m.Kind == session.EntryEvicted.String() {
			ev.Kind = session.EntryEvicted
		}
		c.local.Remove(m.Key)
		if haveLocal {
			ev.Value = entry.sess
			return ev, true
		}
		if m.Value != nil {
			if sess, err := c.codec.Decode(m.Value); err == nil {
				ev.Value = sess
			}
		}

	default:
		c.logger.WarnContext(ctx, "unknown session event", logger.Event(m.Kind), logger.SessionID(m.Key))
		return session.CacheEvent{}, false
	}

	return ev, true
}

func (c *SessionCache) notify(ctx context.Context, tx pgx.Tx, kind session.EventKind, id string, data []byte) error {
	msg := eventMessage{Kind: kind.String(), Key: id, Origin: c.nodeID, Value: data}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if len(payload) > maxNotifyPayload {
		msg.Value = nil
		if payload, err = json.Marshal(msg); err != nil {
			return err
		}
	}
	_, err = tx.Exec(ctx, notifySQL, c.channel, string(payload))
	return err
}

func expiry(now time.Time, ttl time.Duration) *time.Time {
	if ttl <= 0 {
		return nil
	}
	t := now.Add(ttl)
	return &t
}

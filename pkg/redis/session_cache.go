package redis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/clustersession/pkg/cache"
	"github.com/dmitrymomot/clustersession/pkg/logger"
	"github.com/dmitrymomot/clustersession/pkg/session"
)

const (
	defaultKeyPrefix      = "session:"
	defaultEventChannel   = "session:events"
	defaultLocalCacheSize = 10000

	expiredPattern = "__keyevent@*__:expired"
)

// putScript writes the entry and reports whether the key already existed,
// so only the first write of a key is announced as created.
var putScript = redis.NewScript(`
local existed = redis.call("EXISTS", KEYS[1])
local ttl = tonumber(ARGV[2])
if ttl > 0 then
	redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
else
	redis.call("SET", KEYS[1], ARGV[1])
end
return existed
`)

// SessionCache implements session.Cache on top of Redis.
//
// Entries are stored as encoded sessions under a key prefix with a PX
// expiry. Created and removed notifications travel on a pub/sub channel
// tagged with the id of the writing node. Expiry notifications come from
// Redis keyspace events when enabled.
//
// Each node keeps the sessions it decoded or wrote in a bounded local
// cache, so repeated reads of an unchanged entry return the same *Session.
type SessionCache struct {
	client         redis.UniversalClient
	codec          session.Codec
	logger         *slog.Logger
	nodeID         string
	prefix         string
	channel        string
	keyspaceEvents bool
	local          *cache.LRUCache[string, localEntry]
}

type localEntry struct {
	sess *session.Session
	data []byte
}

// eventMessage is the payload published on the event channel
type eventMessage struct {
	Kind   string `json:"kind"`
	Key    string `json:"key"`
	Origin string `json:"origin"`
	Value  []byte `json:"value,omitempty"`
}

// SessionCacheOption configures a SessionCache
type SessionCacheOption func(*SessionCache)

// WithCodec sets the codec used for stored entries (default session.GobCodec)
func WithCodec(codec session.Codec) SessionCacheOption {
	return func(c *SessionCache) {
		if codec != nil {
			c.codec = codec
		}
	}
}

// WithKeyPrefix sets the prefix of session keys
func WithKeyPrefix(prefix string) SessionCacheOption {
	return func(c *SessionCache) {
		if prefix != "" {
			c.prefix = prefix
		}
	}
}

// WithEventChannel sets the pub/sub channel shared by all nodes
func WithEventChannel(channel string) SessionCacheOption {
	return func(c *SessionCache) {
		if channel != "" {
			c.channel = channel
		}
	}
}

// WithKeyspaceEvents turns on expiry notifications. The server must be
// configured with notify-keyspace-events containing "Ex".
func WithKeyspaceEvents(enabled bool) SessionCacheOption {
	return func(c *SessionCache) {
		c.keyspaceEvents = enabled
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

// WithLocalCacheSize bounds the decoded sessions kept on this node
func WithLocalCacheSize(size int) SessionCacheOption {
	return func(c *SessionCache) {
		if size > 0 {
			c.local = cache.NewLRUCache[string, localEntry](size)
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

// NewSessionCache creates a session cache backed by client
func NewSessionCache(client redis.UniversalClient, opts ...SessionCacheOption) *SessionCache {
	c := &SessionCache{
		client:  client,
		codec:   session.GobCodec{},
		logger:  logger.Nop(),
		nodeID:  uuid.NewString(),
		prefix:  defaultKeyPrefix,
		channel: defaultEventChannel,
		local:   cache.NewLRUCache[string, localEntry](defaultLocalCacheSize),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(logger.Backend("redis"), logger.NodeID(c.nodeID))
	return c
}

// NewSessionCacheFromConfig creates a session cache using the session
// settings of cfg. opts are applied after the config.
func NewSessionCacheFromConfig(client redis.UniversalClient, cfg Config, opts ...SessionCacheOption) *SessionCache {
	configOpts := []SessionCacheOption{
		WithKeyPrefix(cfg.KeyPrefix),
		WithEventChannel(cfg.EventChannel),
		WithKeyspaceEvents(cfg.KeyspaceEvents),
		WithLocalCacheSize(cfg.LocalCacheSize),
	}
	return NewSessionCache(client, append(configOpts, opts...)...)
}

// NodeID returns the id this cache tags its events with
func (c *SessionCache) NodeID() string {
	return c.nodeID
}

// Get returns the session stored under id. An unchanged entry yields the
// same *Session as the previous read on this node.
func (c *SessionCache) Get(ctx context.Context, id string) (*session.Session, error) {
	if id == "" {
		return nil, session.ErrSessionNotFound
	}

	data, err := c.client.Get(ctx, c.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
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

// Put writes s under id and announces the key if it did not exist
func (c *SessionCache) Put(ctx context.Context, id string, s *session.Session, ttl time.Duration) error {
	if id == "" || s == nil {
		return session.ErrInvalidSession
	}

	data, err := c.codec.Encode(s)
	if err != nil {
		return err
	}

	existed, err := putScript.Run(ctx, c.client, []string{c.key(id)}, data, ttlMillis(ttl)).Int64()
	if err != nil {
		return errors.Join(session.ErrStoreUnavailable, err)
	}
	c.local.Put(id, localEntry{sess: s, data: data})

	if existed == 0 {
		c.publish(ctx, session.EntryCreated, id, data)
	}
	return nil
}

// Replace overwrites id only while it exists
func (c *SessionCache) Replace(ctx context.Context, id string, s *session.Session, ttl time.Duration) (bool, error) {
	if id == "" || s == nil {
		return false, session.ErrInvalidSession
	}

	data, err := c.codec.Encode(s)
	if err != nil {
		return false, err
	}

	ok, err := c.client.SetXX(ctx, c.key(id), data, clampTTL(ttl)).Result()
	if err != nil {
		return false, errors.Join(session.ErrStoreUnavailable, err)
	}
	if !ok {
		c.local.Remove(id)
		return false, nil
	}

	c.local.Put(id, localEntry{sess: s, data: data})
	return true, nil
}

// Remove deletes id and announces the removal with the removed value
func (c *SessionCache) Remove(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}

	data, err := c.client.GetDel(ctx, c.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		c.local.Remove(id)
		return nil
	}
	if err != nil {
		return errors.Join(session.ErrStoreUnavailable, err)
	}

	// the local copy is dropped when the event comes back, so the
	// removed notification can carry the live session
	c.publish(ctx, session.EntryRemoved, id, data)
	return nil
}

// Contains reports whether a live entry exists under id
func (c *SessionCache) Contains(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, nil
	}
	n, err := c.client.Exists(ctx, c.key(id)).Result()
	if err != nil {
		return false, errors.Join(session.ErrStoreUnavailable, err)
	}
	return n > 0, nil
}

// Subscribe listens on the event channel, and on expiry notifications when
// enabled, until ctx is done.
func (c *SessionCache) Subscribe(ctx context.Context) (<-chan session.CacheEvent, error) {
	pubsub := c.client.Subscribe(ctx, c.channel)
	confirmations := 1
	if c.keyspaceEvents {
		if err := pubsub.PSubscribe(ctx, expiredPattern); err != nil {
			_ = pubsub.Close()
			return nil, errors.Join(session.ErrStoreUnavailable, err)
		}
		confirmations++
	}

	for range confirmations {
		if _, err := pubsub.Receive(ctx); err != nil {
			_ = pubsub.Close()
			return nil, errors.Join(session.ErrStoreUnavailable, err)
		}
	}

	out := make(chan session.CacheEvent, 256)
	messages := pubsub.Channel(redis.WithChannelSize(256))

	go func() {
		defer close(out)
		defer pubsub.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				ev, ok := c.translate(msg)
				if !ok {
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func (c *SessionCache) translate(msg *redis.Message) (session.CacheEvent, bool) {
	if msg.Pattern != "" {
		return c.translateExpired(msg.Payload)
	}

	var m eventMessage
	if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
		c.logger.Warn("drop session event", logger.Error(errors.Join(ErrDecodeEvent, err)))
		return session.CacheEvent{}, false
	}

	ev := session.CacheEvent{Key: m.Key, OriginLocal: m.Origin == c.nodeID}
	entry, haveLocal := c.local.Peek(m.Key)

	switch m.Kind {
	case session.EntryCreated.String():
		ev.Kind = session.EntryCreated
		if haveLocal && bytes.Equal(entry.data, m.Value) {
			ev.Value = entry.sess
			return ev, true
		}
		sess, err := c.codec.Decode(m.Value)
		if err != nil {
			c.logger.Warn("undecodable session event", logger.SessionID(m.Key), logger.Error(err))
			return ev, true
		}
		c.local.Put(m.Key, localEntry{sess: sess, data: m.Value})
		ev.Value = sess

	case session.EntryRemoved.String():
		ev.Kind = session.EntryRemoved
		c.local.Remove(m.Key)
		if haveLocal {
			ev.Value = entry.sess
			return ev, true
		}
		if sess, err := c.codec.Decode(m.Value); err == nil {
			ev.Value = sess
		}

	default:
		c.logger.Warn("unknown session event", logger.Event(m.Kind), logger.SessionID(m.Key))
		return session.CacheEvent{}, false
	}

	return ev, true
}

// translateExpired handles a keyevent notification whose payload is the
// expired key. Redis does not deliver the value, so only a local copy can
// be attached.
func (c *SessionCache) translateExpired(key string) (session.CacheEvent, bool) {
	id, ok := strings.CutPrefix(key, c.prefix)
	if !ok {
		return session.CacheEvent{}, false
	}

	ev := session.CacheEvent{Kind: session.EntryEvicted, Key: id}
	if entry, ok := c.local.Peek(id); ok {
		ev.Value = entry.sess
	}
	c.local.Remove(id)
	return ev, true
}

func (c *SessionCache) publish(ctx context.Context, kind session.EventKind, id string, data []byte) {
	payload, err := json.Marshal(eventMessage{
		Kind:   kind.String(),
		Key:    id,
		Origin: c.nodeID,
		Value:  data,
	})
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to encode session event", logger.SessionID(id), logger.Error(err))
		return
	}

	// the write already succeeded; a lost notification only delays listeners
	if err := c.client.Publish(ctx, c.channel, payload).Err(); err != nil {
		c.logger.ErrorContext(ctx, "failed to publish session event",
			logger.SessionID(id),
			logger.Event(kind.String()),
			logger.Error(err),
		)
	}
}

func (c *SessionCache) key(id string) string {
	return c.prefix + id
}

// clampTTL rounds positive sub-millisecond TTLs up to the 1ms Redis minimum
func clampTTL(ttl time.Duration) time.Duration {
	if ttl > 0 && ttl < time.Millisecond {
		return time.Millisecond
	}
	if ttl < 0 {
		return 0
	}
	return ttl
}

func ttlMillis(ttl time.Duration) int64 {
	return clampTTL(ttl).Milliseconds()
}

package session

import (
	"context"
	"time"
)

// EventKind identifies a cache mutation delivered through Cache.Subscribe
type EventKind uint8

const (
	// EntryCreated is delivered when a key that did not exist is written
	EntryCreated EventKind = iota + 1
	// EntryRemoved is delivered after an explicit removal
	EntryRemoved
	// EntryEvicted is delivered after the cache expired an entry on its own
	EntryEvicted
)

func (k EventKind) String() string {
	switch k {
	case EntryCreated:
		return "created"
	case EntryRemoved:
		return "removed"
	case EntryEvicted:
		return "evicted"
	default:
		return "unknown"
	}
}

// CacheEvent describes a mutation of the distributed cache.
//
// Value may be nil when the backend cannot deliver the entry together with
// the notification. OriginLocal is true when the mutation was performed by
// the node receiving the event.
type CacheEvent struct {
	Kind        EventKind
	Key         string
	Value       *Session
	OriginLocal bool
}

// Cache is the contract the session layer needs from a distributed,
// TTL-bearing key/value store. Implementations wrap transport failures in
// ErrStoreUnavailable and report missing keys with ErrSessionNotFound.
type Cache interface {
	// Get returns the live session stored under id
	Get(ctx context.Context, id string) (*Session, error)

	// Put inserts or overwrites id; the entry expires ttl after this write.
	// A non-positive ttl stores the entry without expiry.
	Put(ctx context.Context, id string, s *Session, ttl time.Duration) error

	// Replace overwrites id only if it is still present and reports whether
	// it did. Concurrent writers are resolved by last write wins.
	Replace(ctx context.Context, id string, s *Session, ttl time.Duration) (bool, error)

	// Remove deletes id. Removing a missing key is not an error.
	Remove(ctx context.Context, id string) error

	// Contains reports whether a live entry exists under id
	Contains(ctx context.Context, id string) (bool, error)

	// Subscribe delivers mutation events until ctx is done, then closes
	// the returned channel.
	Subscribe(ctx context.Context) (<-chan CacheEvent, error)
}

// Package cache provides a generic, thread-safe LRU map used for node-local
// bookkeeping next to the distributed session cache: the last-known state of
// sessions whose removal events carry no value, and the live session
// pointers a node hands back for its own mutations.
//
// # Usage
//
//	snapshots := cache.NewLRUCache[string, *session.Session](10000)
//
//	snapshots.Put(sess.ID(), sess)
//
//	// Peek does not refresh recency
//	last, ok := snapshots.Peek(id)
//
//	// RemoveIf drops an entry only if it is still the expected one
//	snapshots.RemoveIf(id, func(s *session.Session) bool { return s == last })
//
// The evict callback runs for capacity evictions and Clear, never for
// explicit removals.
//
// All operations are O(1) and safe for concurrent use.
package cache

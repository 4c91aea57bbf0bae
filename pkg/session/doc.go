// Package session keeps HTTP sessions in a replicated, TTL-bearing
// distributed cache, so that any node of a cluster can serve any session
// and sessions outlive the node that created them.
//
// # Architecture
//
// A Manager sits between the request path and a Cache. It allocates ids
// through an IDManager, stores new sessions with their idle timeout as TTL,
// resolves and restores existing ones, and flushes modified sessions when a
// request completes. Independently, a single dispatcher goroutine consumes
// the cache's mutation events and turns them into Listener callbacks.
//
//	┌────────┐  cookie   ┌────────────┐   Get/Put/Replace   ┌───────┐
//	│ Client │ ────────► │  Manager   │ ──────────────────► │ Cache │
//	└────────┘           └────────────┘                     └───────┘
//	                           ▲            CacheEvent          │
//	                           └──── dispatcher ◄───────────────┘
//	                                     │
//	                                     ▼
//	                                 Listeners
//
// Cache implementations ship for a single process (MemoryCluster, which
// also simulates several nodes in tests), Redis (pkg/redis) and Postgres
// (pkg/pg).
//
// # Replication model
//
// A Session carries replicated state (id, timestamps, idle timeout,
// attributes, validity) and node-local state (cache handle, Host, the
// modified flag). A node that sees a session for the first time, whether
// it created it or decoded it from the cache, calls Restore; attributes
// implementing Activator are told about it.
//
// Writes are last-write-wins. There is no cluster lock and no version
// check: two nodes completing the same session concurrently both write.
// Complete never resurrects a session that expired or was removed
// meanwhile.
//
// # Usage
//
//	cluster := session.NewMemoryCluster()
//	manager, err := session.New(cluster.Join(),
//	    session.WithMaxIdle(30*time.Minute),
//	    session.WithCookieMaxAge(24*time.Hour),
//	    session.WithListeners(metricsCollector),
//	)
//	if err != nil {
//	    return err
//	}
//	defer manager.Close()
//
//	mux.Handle("/", manager.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
//	    sess, err := manager.Ensure(r.Context(), w, r)
//	    if err != nil {
//	        http.Error(w, "session error", http.StatusInternalServerError)
//	        return
//	    }
//	    sess.SetAttribute("visits", n+1)
//	})))
//
// Attribute values of non-builtin types must be registered with
// RegisterType on every node before the default GobCodec can decode them.
//
// # Error Handling
//
//   - ErrSessionNotFound: no live session under the id
//   - ErrStoreUnavailable: the cache could not be reached; never retried here
//   - ErrNotSupported: legacy value accessors
//   - ErrUnsupportedTrackingMode: a tracking mode other than cookies was configured
//
// Invalidation is idempotent and never fails because the session is
// already gone.
package session

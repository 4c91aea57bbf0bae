package logger

import "log/slog"

// Group creates a slog group attribute from the provided attributes.
func Group(name string, attrs ...slog.Attr) slog.Attr {
	return slog.Attr{Key: name, Value: slog.GroupValue(attrs...)}
}

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// SessionID records the session identifier under the key "session_id".
// Empty ids produce an empty Attr.
func SessionID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("session_id", id)
}

// NodeID records the cluster node identifier under the key "node_id".
func NodeID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("node_id", id)
}

// UserID records the principal's user id under the key "user_id".
func UserID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("user_id", id)
}

// CacheEvent groups a cache mutation kind and where it originated.
func CacheEvent(kind string, originLocal bool) slog.Attr {
	return Group("cache_event",
		slog.String("kind", kind),
		slog.Bool("origin_local", originLocal),
	)
}

// Backend records the cache backend name under the key "backend".
func Backend(name string) slog.Attr {
	return slog.String("backend", name)
}

// Count records a number of affected items under the key "count".
func Count(n int) slog.Attr {
	return slog.Int("count", n)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Event records the event name under the key "event".
func Event(name string) slog.Attr {
	return slog.String("event", name)
}

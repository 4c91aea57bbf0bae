package session

import (
	"log/slog"

	"github.com/dmitrymomot/clustersession/pkg/logger"
)

// dispatch consumes cache events until the subscription channel closes.
// It is the only goroutine that calls listeners.
func (m *Manager) dispatch(events <-chan CacheEvent) {
	defer close(m.dispatchDone)
	for ev := range events {
		m.handleEvent(ev)
	}
}

func (m *Manager) handleEvent(ev CacheEvent) {
	switch ev.Kind {
	case EntryCreated:
		sess := ev.Value
		if sess == nil {
			s, err := m.cache.Get(m.ctx, ev.Key)
			if err != nil {
				m.logger.Warn("created session vanished before dispatch",
					logger.SessionID(ev.Key),
					logger.Error(err),
				)
				return
			}
			sess = s
		}
		m.observe(sess, ev.OriginLocal)
		m.notify(ev, sess, Listener.SessionCreated)

	case EntryRemoved, EntryEvicted:
		sess := ev.Value
		last, known := m.snapshots.Remove(ev.Key)
		if sess == nil {
			if known {
				sess = last
			} else {
				sess = tombstone(ev.Key)
			}
		}
		if !sess.Restored() {
			sess.Restore(m.cache, m.host)
		}
		m.notify(ev, sess, Listener.SessionDestroyed)

	default:
		m.logger.Warn("unknown cache event", logger.CacheEvent(ev.Kind.String(), ev.OriginLocal), logger.SessionID(ev.Key))
	}
}

// observe restores transient state on sessions first seen on this node and
// records them as the last-known snapshot for their id.
func (m *Manager) observe(sess *Session, originLocal bool) {
	if !originLocal || !sess.Restored() {
		sess.Restore(m.cache, m.host)
	}
	m.snapshots.Put(sess.ID(), sess)
}

func (m *Manager) notify(ev CacheEvent, sess *Session, call func(Listener, *Session)) {
	m.logger.Debug("session event",
		logger.CacheEvent(ev.Kind.String(), ev.OriginLocal),
		logger.SessionID(ev.Key),
	)
	for _, l := range m.listenerSnapshot() {
		m.safeCall(l, sess, call)
	}
}

func (m *Manager) safeCall(l Listener, sess *Session, call func(Listener, *Session)) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("session listener panicked",
				logger.SessionID(sess.ID()),
				slog.Any("panic", r),
			)
		}
	}()
	call(l, sess)
}

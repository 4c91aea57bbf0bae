package session

import "reflect"

// Listener receives session lifecycle notifications. Callbacks run on the
// manager's dispatcher goroutine, one at a time and in registration order,
// so a slow listener delays every listener registered after it.
type Listener interface {
	SessionCreated(s *Session)
	SessionDestroyed(s *Session)
}

// ListenerFuncs adapts plain functions to Listener. Nil fields are skipped.
type ListenerFuncs struct {
	Created   func(s *Session)
	Destroyed func(s *Session)
}

func (l ListenerFuncs) SessionCreated(s *Session) {
	if l.Created != nil {
		l.Created(s)
	}
}

func (l ListenerFuncs) SessionDestroyed(s *Session) {
	if l.Destroyed != nil {
		l.Destroyed(s)
	}
}

// AddListener appends l to the notification list
func (m *Manager) AddListener(l Listener) {
	if l == nil {
		return
	}
	m.listenersMu.Lock()
	m.listeners = append(m.listeners, l)
	m.listenersMu.Unlock()
}

// RemoveListener drops the first registration of l. Listeners are compared
// with ==, so a ListenerFuncs value has to be registered by pointer to be
// removable.
func (m *Manager) RemoveListener(l Listener) {
	if l == nil || !reflect.TypeOf(l).Comparable() {
		return
	}
	m.listenersMu.Lock()
	defer m.listenersMu.Unlock()
	for i, existing := range m.listeners {
		if reflect.TypeOf(existing).Comparable() && existing == l {
			m.listeners = append(m.listeners[:i:i], m.listeners[i+1:]...)
			return
		}
	}
}

// ClearListeners removes every listener
func (m *Manager) ClearListeners() {
	m.listenersMu.Lock()
	m.listeners = nil
	m.listenersMu.Unlock()
}

func (m *Manager) listenerSnapshot() []Listener {
	m.listenersMu.RLock()
	defer m.listenersMu.RUnlock()
	return m.listeners
}

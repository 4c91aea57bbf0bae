package session

// BindingEvent is delivered to attribute values when they are attached to
// or detached from a session.
type BindingEvent struct {
	Session *Session
	Name    string
}

// Binder is implemented by attribute values that want to know when they
// are stored in a session.
type Binder interface {
	ValueBound(e BindingEvent)
}

// Unbinder is implemented by attribute values that want to know when they
// are removed from a session, replaced, or the session is invalidated.
type Unbinder interface {
	ValueUnbound(e BindingEvent)
}

// Activator is implemented by attribute values that keep a reference to
// their session. SessionDidActivate is called every time the session is
// restored on a node, which is the only point where such a reference can
// be re-established after replication.
type Activator interface {
	SessionDidActivate(s *Session)
}

func (s *Session) bind(name string, value any) {
	if b, ok := value.(Binder); ok {
		b.ValueBound(BindingEvent{Session: s, Name: name})
	}
}

func (s *Session) unbind(name string, value any) {
	if u, ok := value.(Unbinder); ok {
		u.ValueUnbound(BindingEvent{Session: s, Name: name})
	}
}

func (s *Session) activate(values []any) {
	for _, v := range values {
		if a, ok := v.(Activator); ok {
			a.SessionDidActivate(s)
		}
	}
}

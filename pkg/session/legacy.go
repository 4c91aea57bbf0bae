package session

// The methods below exist for parity with the older value-based session
// contract. They are observably broken: every call fails with
// ErrNotSupported instead of silently doing nothing.

// Deprecated: use Attribute.
func (s *Session) GetValue(name string) (any, error) {
	return nil, ErrNotSupported
}

// Deprecated: use SetAttribute.
func (s *Session) PutValue(name string, value any) error {
	return ErrNotSupported
}

// Deprecated: use RemoveAttribute.
func (s *Session) RemoveValue(name string) error {
	return ErrNotSupported
}

// Deprecated: use AttributeNames.
func (s *Session) ValueNames() ([]string, error) {
	return nil, ErrNotSupported
}

// Deprecated: there is no replacement.
func (s *Session) SessionContext() (any, error) {
	return nil, ErrNotSupported
}

// Deprecated: there is no replacement.
func (m *Manager) MetaManager() (*IDManager, error) {
	return nil, ErrNotSupported
}

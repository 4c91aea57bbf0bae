package session

import "errors"

var (
	// ErrSessionNotFound indicates no live session is stored under the id
	ErrSessionNotFound = errors.New("session.not_found")

	// ErrStoreUnavailable indicates the distributed cache could not be reached.
	// It is never retried by this package.
	ErrStoreUnavailable = errors.New("session.store_unavailable")

	// ErrNotSupported is returned by the legacy accessor surface
	ErrNotSupported = errors.New("session.not_supported")

	// ErrNotRestored indicates the session has no node-local cache handle yet
	ErrNotRestored = errors.New("session.not_restored")

	// ErrUnsupportedTrackingMode indicates a tracking mode other than cookies was configured
	ErrUnsupportedTrackingMode = errors.New("session.unsupported_tracking_mode")

	// ErrIDGeneration indicates a collision-free id could not be allocated
	ErrIDGeneration = errors.New("session.id_generation_failed")

	// ErrInvalidSession indicates a nil session or an empty id was handed to a store
	ErrInvalidSession = errors.New("session.invalid")

	// ErrCodec indicates a session could not be encoded or decoded
	ErrCodec = errors.New("session.codec")

	// ErrNilCache indicates a manager was created without a cache
	ErrNilCache = errors.New("session.nil_cache")

	// ErrManagerClosed is returned once Close has been called
	ErrManagerClosed = errors.New("session.manager_closed")
)

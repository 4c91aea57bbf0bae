package redis

import "errors"

var (
	ErrFailedToParseRedisConnString = errors.New("failed to parse redis connection string")
	ErrRedisNotReady                = errors.New("redis did not become ready within the given time period")
	ErrEmptyConnectionURL           = errors.New("empty redis connection URL, use REDIS_URL env var")
	ErrHealthcheckFailed            = errors.New("redis healthcheck failed")
	ErrDecodeEvent                  = errors.New("malformed session event")
	ErrKeyspaceEventsDisabled       = errors.New(`notify-keyspace-events does not publish expired events, set it to include "Ex"`)
	ErrKeyspaceEventsUnknown        = errors.New("cannot read notify-keyspace-events")
)

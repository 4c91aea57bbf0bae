package session

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"errors"
	"time"
)

// Codec turns a session into the bytes stored in the distributed cache and
// back. Only replicated fields are encoded.
type Codec interface {
	Encode(s *Session) ([]byte, error)
	Decode(data []byte) (*Session, error)
}

// wireSession is the replicated payload
type wireSession struct {
	ID             string         `json:"id"`
	CreatedAt      time.Time      `json:"created_at"`
	LastAccessedAt time.Time      `json:"last_accessed_at"`
	CookieIssuedAt time.Time      `json:"cookie_issued_at"`
	MaxIdle        time.Duration  `json:"max_idle"`
	Attributes     map[string]any `json:"attributes,omitempty"`
	Valid          bool           `json:"valid"`
}

// RegisterType makes a concrete attribute type known to GobCodec. Every
// non-builtin type stored as an attribute must be registered on every node
// before sessions carrying it are decoded.
func RegisterType(value any) {
	gob.Register(value)
}

// GobCodec preserves the concrete types of registered attribute values.
// It is the default codec.
type GobCodec struct{}

func (GobCodec) Encode(s *Session) ([]byte, error) {
	if s == nil {
		return nil, ErrInvalidSession
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(s.snapshot()); err != nil {
		return nil, errors.Join(ErrCodec, err)
	}
	return buf.Bytes(), nil
}

func (GobCodec) Decode(data []byte) (*Session, error) {
	var w wireSession
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&w); err != nil {
		return nil, errors.Join(ErrCodec, err)
	}
	return fromWire(w), nil
}

// JSONCodec produces human-readable payloads. Attribute values come back
// as generic JSON values (maps, float64, strings...).
type JSONCodec struct{}

func (JSONCodec) Encode(s *Session) ([]byte, error) {
	if s == nil {
		return nil, ErrInvalidSession
	}
	data, err := json.Marshal(s.snapshot())
	if err != nil {
		return nil, errors.Join(ErrCodec, err)
	}
	return data, nil
}

func (JSONCodec) Decode(data []byte) (*Session, error) {
	var w wireSession
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, errors.Join(ErrCodec, err)
	}
	return fromWire(w), nil
}

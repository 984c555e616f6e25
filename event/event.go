// Package event defines the envelope carried across the monitor.
package event

import (
	"context"
	"maps"

	apperrors "github.com/leeforge/monitor/errors"
)

// Metadata keys with meaning to the bus's own plugins. Untrusted callers
// must not be able to set them.
const (
	MetaSubject = "subject"
	MetaOrigin  = "origin"
)

// Event is the unit of delivery. Timestamp is unix milliseconds; a negative
// value means the timestamp is missing.
type Event struct {
	Type      string         `json:"type"`
	Payload   any            `json:"payload"`
	Timestamp int64          `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Handler receives a delivered event. A returned error aborts the rest of the
// delivery for that emission.
type Handler func(ctx context.Context, e Event) error

// Option customises an event built by New.
type Option func(*Event)

// WithTimestamp overrides the stamped time.
func WithTimestamp(ms int64) Option {
	return func(e *Event) {
		e.Timestamp = ms
	}
}

// WithMetadata sets a single metadata entry.
func WithMetadata(key string, value any) Option {
	return func(e *Event) {
		if e.Metadata == nil {
			e.Metadata = make(map[string]any)
		}
		e.Metadata[key] = value
	}
}

// WithStamper stamps the event from s instead of the package stamper.
func WithStamper(s *Stamper) Option {
	return func(e *Event) {
		if s != nil {
			e.Timestamp = s.Stamp()
		}
	}
}

// New builds a well-formed event stamped with the current time.
func New(eventType string, payload any, opts ...Option) Event {
	e := Event{
		Type:      eventType,
		Payload:   payload,
		Timestamp: defaultStamper.Stamp(),
	}
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

// Validate reports the first missing field as a malformed_event error.
func (e Event) Validate() error {
	switch {
	case e.Type == "":
		return apperrors.NewMalformedEvent("type", "is required")
	case e.Payload == nil:
		return apperrors.NewMalformedEvent("payload", "is required")
	case e.Timestamp < 0:
		return apperrors.NewMalformedEvent("timestamp", "is required")
	}
	return nil
}

// Meta returns a metadata value.
func (e Event) Meta(key string) (any, bool) {
	if e.Metadata == nil {
		return nil, false
	}
	v, ok := e.Metadata[key]
	return v, ok
}

// MetaString returns a metadata value when it is a string.
func (e Event) MetaString(key string) string {
	v, _ := e.Meta(key)
	s, _ := v.(string)
	return s
}

// WithMeta returns a copy of e with key set. The receiver's map is not mutated.
func (e Event) WithMeta(key string, value any) Event {
	md := make(map[string]any, len(e.Metadata)+1)
	maps.Copy(md, e.Metadata)
	md[key] = value
	e.Metadata = md
	return e
}

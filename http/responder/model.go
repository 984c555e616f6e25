package responder

import apperrors "github.com/leeforge/monitor/errors"

// Response is the envelope of every API response.
type Response struct {
	Data  any                     `json:"data,omitempty"`
	Error *apperrors.ErrorResponse `json:"error,omitempty"`
	Meta  Meta                    `json:"meta"`
}

// Meta carries request metadata alongside the payload.
type Meta struct {
	TraceId string `json:"traceId,omitempty"`
	Took    int64  `json:"took,omitempty"`
}

type Option func(*Meta)

func WithTraceID(id string) Option {
	return func(m *Meta) {
		m.TraceId = id
	}
}

func WithTook(ms int64) Option {
	return func(m *Meta) {
		m.Took = ms
	}
}

func NewMeta(opts ...Option) *Meta {
	meta := Meta{}
	for _, opt := range opts {
		opt(&meta)
	}
	return &meta
}

package binding

import (
	"bytes"

	"github.com/leeforge/monitor/json"
)

type decodeOptions struct {
	useNumber             bool
	disallowUnknownFields bool
}

// Option customises JSON decoding.
type Option func(*decodeOptions)

// WithUseNumber decodes numbers into json.Number instead of float64.
func WithUseNumber() Option {
	return func(opts *decodeOptions) { opts.useNumber = true }
}

// WithDisallowUnknownFields rejects fields the target does not declare.
func WithDisallowUnknownFields() Option {
	return func(opts *decodeOptions) { opts.disallowUnknownFields = true }
}

func decode(body []byte, v any, opts ...Option) error {
	var options decodeOptions
	for _, opt := range opts {
		opt(&options)
	}

	decoder := json.NewDecoder(bytes.NewReader(body))
	if options.useNumber {
		decoder.Decoder.UseNumber()
	}
	if options.disallowUnknownFields {
		decoder.Decoder.DisallowUnknownFields()
	}
	return decoder.Decode(v)
}

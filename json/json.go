// Package json wraps json-iterator with creasty/defaults so `default:` struct
// tags are applied before values are encoded or decoded.
package json

import (
	"io"
	"reflect"

	"github.com/creasty/defaults"
	jsoniter "github.com/json-iterator/go"
)

var api = jsoniter.ConfigCompatibleWithStandardLibrary

// RawMessage is a raw encoded JSON value.
type RawMessage = jsoniter.RawMessage

type Encoder struct {
	*jsoniter.Encoder
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{Encoder: api.NewEncoder(w)}
}

// Encode applies defaults to v before encoding it.
func (e *Encoder) Encode(v any) error {
	if err := applyDefaults(v); err != nil {
		return err
	}
	return e.Encoder.Encode(v)
}

type Decoder struct {
	*jsoniter.Decoder
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{Decoder: api.NewDecoder(r)}
}

// Decode applies defaults to v, then overwrites them with the decoded input.
func (d *Decoder) Decode(v any) error {
	if err := applyDefaults(v); err != nil {
		return err
	}
	return d.Decoder.Decode(v)
}

func Marshal(v any) ([]byte, error) {
	if err := applyDefaults(v); err != nil {
		return nil, err
	}
	return api.Marshal(v)
}

func MarshalIndent(v any, prefix, indent string) ([]byte, error) {
	if err := applyDefaults(v); err != nil {
		return nil, err
	}
	return api.MarshalIndent(v, prefix, indent)
}

func MarshalToString(v any) (string, error) {
	if err := applyDefaults(v); err != nil {
		return "", err
	}
	return api.MarshalToString(v)
}

func Unmarshal(data []byte, v any) error {
	if err := applyDefaults(v); err != nil {
		return err
	}
	return api.Unmarshal(data, v)
}

// Valid reports whether data is valid JSON.
func Valid(data []byte) bool {
	return api.Valid(data)
}

// applyDefaults only touches struct pointers; maps, slices and scalars pass
// through untouched.
func applyDefaults(v any) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return nil
	}
	return defaults.Set(v)
}

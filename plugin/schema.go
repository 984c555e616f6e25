package plugin

import (
	"fmt"
	"reflect"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"

	"github.com/leeforge/monitor/json"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Schema validates raw configuration and returns the normalised value that
// is handed to Init.
type Schema interface {
	Validate(raw any) (any, error)
}

// SchemaFunc adapts a function to Schema.
type SchemaFunc func(raw any) (any, error)

func (f SchemaFunc) Validate(raw any) (any, error) {
	return f(raw)
}

type structSchema[T any] struct{}

// StructSchema returns a Schema producing *T. Raw input may be a T, a *T,
// a map or *Settings. `default:` tags fill gaps and `validate:` tags are
// enforced afterwards.
func StructSchema[T any]() Schema {
	return structSchema[T]{}
}

func (structSchema[T]) Validate(raw any) (any, error) {
	out := new(T)
	if reflect.TypeOf(out).Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("struct schema requires a struct type, got %T", *out)
	}

	switch v := raw.(type) {
	case nil:
		if err := defaults.Set(out); err != nil {
			return nil, err
		}
	case T:
		*out = v
		if err := defaults.Set(out); err != nil {
			return nil, err
		}
	case *T:
		if v != nil {
			*out = *v
		}
		if err := defaults.Set(out); err != nil {
			return nil, err
		}
	case *Settings:
		if err := v.Bind(out); err != nil {
			return nil, err
		}
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, out); err != nil {
			return nil, err
		}
	}

	if err := validate.Struct(out); err != nil {
		return nil, err
	}
	return out, nil
}

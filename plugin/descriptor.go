package plugin

import (
	"context"

	"github.com/google/uuid"
)

// Type selects which capabilities a plugin's context exposes.
type Type string

const (
	TypeConsumer Type = "consumer"
	TypeProducer Type = "producer"
	TypeBoth     Type = "both"
)

// Valid reports whether t is one of the three plugin types.
func (t Type) Valid() bool {
	switch t {
	case TypeConsumer, TypeProducer, TypeBoth:
		return true
	}
	return false
}

// IsProducer is true for producer and both.
func (t Type) IsProducer() bool {
	return t == TypeProducer || t == TypeBoth
}

// IsConsumer is true for consumer and both.
func (t Type) IsConsumer() bool {
	return t == TypeConsumer || t == TypeBoth
}

// Signature identifies a plugin class. Every instance built from the same
// Define call shares it.
type Signature uuid.UUID

func newSignature() Signature {
	return Signature(uuid.New())
}

func (s Signature) String() string {
	return uuid.UUID(s).String()
}

// Descriptor declares a plugin class.
type Descriptor struct {
	Name string `validate:"required"`
	Type Type   `validate:"required,oneof=consumer producer both"`
	// Opts validates and normalises instance configuration. Nil means the
	// plugin takes no configuration.
	Opts Schema `validate:"-"`
	// Events lists the event types a producer may emit.
	Events       []string `validate:"dive,required"`
	OptsRequired bool
}

// Handlers is a namespace's callable surface keyed by handler name.
type Handlers map[string]any

// NamespaceSpec exposes a producer's handlers under Alias.
type NamespaceSpec struct {
	Alias    string
	Handlers func(ctx Context, cfg any) (Handlers, error)
}

func (n *NamespaceSpec) usable() bool {
	return n != nil && n.Alias != "" && n.Handlers != nil
}

// Architecture is the behaviour half of a plugin class.
type Architecture struct {
	// Init runs once on activation with the plugin's capability context.
	Init func(ctx Context, cfg any) error
	// Namespace is optional and only allowed on producer and both plugins.
	Namespace *NamespaceSpec
	// Dispose runs when the owning monitor closes.
	Dispose func(ctx context.Context, cfg any) error
}

package plugin

import (
	"errors"
	"fmt"
	"slices"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/leeforge/monitor/errors"
)

// Class is a defined plugin: a validated descriptor bound to its
// architecture. Instances are created with New.
type Class struct {
	signature Signature
	desc      Descriptor
	arch      Architecture
}

// Define validates a descriptor and architecture and mints the class
// signature. It is the only way to obtain a Class.
func Define(desc Descriptor, arch Architecture) (*Class, error) {
	if err := validate.Struct(desc); err != nil {
		return nil, describeValidation(desc.Name, err)
	}
	if desc.Type.IsProducer() && len(desc.Events) == 0 {
		return nil, apperrors.NewConfiguration(
			fmt.Sprintf("plugin %q is a %s and must declare at least one event", desc.Name, desc.Type)).
			WithDetail("plugin", desc.Name)
	}
	if arch.Init == nil {
		return nil, apperrors.NewConfiguration(fmt.Sprintf("plugin %q has no init", desc.Name)).
			WithDetail("plugin", desc.Name)
	}
	if arch.Namespace.usable() && !desc.Type.IsProducer() {
		return nil, apperrors.NewConfiguration(
			fmt.Sprintf("plugin %q is a consumer and cannot expose namespace %q", desc.Name, arch.Namespace.Alias)).
			WithDetail("plugin", desc.Name)
	}
	if !arch.Namespace.usable() {
		arch.Namespace = nil
	} else {
		ns := *arch.Namespace
		arch.Namespace = &ns
	}

	desc.Events = slices.Clone(desc.Events)
	return &Class{
		signature: newSignature(),
		desc:      desc,
		arch:      arch,
	}, nil
}

// MustDefine is Define that panics on error. Intended for package-level
// plugin declarations.
func MustDefine(desc Descriptor, arch Architecture) *Class {
	c, err := Define(desc, arch)
	if err != nil {
		panic(err)
	}
	return c
}

func describeValidation(name string, err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperrors.WrapWithType(err, apperrors.ErrorTypeConfiguration, "invalid plugin descriptor")
	}
	fe := verrs[0]
	return apperrors.WrapWithType(err, apperrors.ErrorTypeConfiguration,
		fmt.Sprintf("plugin %q: descriptor field %s failed %q", name, fe.Namespace(), fe.Tag())).
		WithDetail("field", fe.Field())
}

func (c *Class) Signature() Signature { return c.signature }
func (c *Class) Name() string         { return c.desc.Name }
func (c *Class) Type() Type           { return c.desc.Type }

// Events returns a copy of the declared event types.
func (c *Class) Events() []string {
	return slices.Clone(c.desc.Events)
}

// Declares reports whether eventType is in the declared event list.
func (c *Class) Declares(eventType string) bool {
	return slices.Contains(c.desc.Events, eventType)
}

// Descriptor returns a copy of the class descriptor.
func (c *Class) Descriptor() Descriptor {
	d := c.desc
	d.Events = slices.Clone(c.desc.Events)
	return d
}

// NamespaceAlias returns the namespace alias, or "" without a namespace.
func (c *Class) NamespaceAlias() string {
	if c.arch.Namespace == nil {
		return ""
	}
	return c.arch.Namespace.Alias
}

// New constructs an instance. Configuration is validated here; nothing else
// happens until the instance is activated by a monitor.
func (c *Class) New(cfg any) (*Instance, error) {
	normalized, err := c.normalize(cfg)
	if err != nil {
		return nil, err
	}
	return &Instance{
		class:  c,
		config: normalized,
		state:  StateConstructed,
	}, nil
}

// NewFromSettings constructs an instance from file configuration. Settings
// without values count as no configuration, so OptsRequired still applies.
func (c *Class) NewFromSettings(s *Settings) (*Instance, error) {
	if s.Empty() {
		return c.New(nil)
	}
	return c.New(s)
}

func (c *Class) normalize(cfg any) (any, error) {
	if cfg == nil && c.desc.OptsRequired {
		return nil, apperrors.NewConfiguration(fmt.Sprintf("plugin %q requires options", c.desc.Name)).
			WithDetail("plugin", c.desc.Name)
	}
	if c.desc.Opts == nil {
		return cfg, nil
	}
	out, err := c.desc.Opts.Validate(cfg)
	if err != nil {
		return nil, apperrors.WrapWithType(err, apperrors.ErrorTypeConfiguration,
			fmt.Sprintf("plugin %q options are invalid", c.desc.Name)).
			WithDetail("plugin", c.desc.Name)
	}
	return out, nil
}

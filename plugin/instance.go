package plugin

import (
	"context"
	"fmt"
	"sync"

	apperrors "github.com/leeforge/monitor/errors"
)

// Instance is a configured plugin ready to be registered on a monitor.
type Instance struct {
	class  *Class
	mu     sync.Mutex
	config any
	state  State
}

func (i *Instance) Class() *Class          { return i.class }
func (i *Instance) Signature() Signature   { return i.class.signature }
func (i *Instance) Name() string           { return i.class.desc.Name }
func (i *Instance) Type() Type             { return i.class.desc.Type }
func (i *Instance) Events() []string       { return i.class.Events() }
func (i *Instance) HasNamespace() bool     { return i.class.arch.Namespace != nil }
func (i *Instance) NamespaceAlias() string { return i.class.NamespaceAlias() }

// Config returns the validated configuration (nil without a schema).
func (i *Instance) Config() any {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.config
}

func (i *Instance) State() State {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

// Configure replaces the configuration. Only allowed before activation.
func (i *Instance) Configure(cfg any) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.state != StateConstructed {
		return apperrors.NewAlreadyActivated(i.Name())
	}
	normalized, err := i.class.normalize(cfg)
	if err != nil {
		return err
	}
	i.config = normalized
	return nil
}

// Activate calls Init exactly once. A failed Init leaves the instance
// constructed so activation can be retried.
func (i *Instance) Activate(ctx Context) error {
	i.mu.Lock()
	if i.state.IsLive() {
		i.mu.Unlock()
		return apperrors.NewAlreadyActivated(i.Name())
	}
	if i.state == StateDisposed {
		i.mu.Unlock()
		return apperrors.NewClosed(fmt.Sprintf("plugin %q is disposed", i.Name()))
	}
	i.state = StateActivating
	cfg := i.config
	i.mu.Unlock()

	err := i.callInit(ctx, cfg)

	i.mu.Lock()
	defer i.mu.Unlock()
	if err != nil {
		i.state = StateConstructed
		return apperrors.NewActivation(i.Name(), err)
	}
	i.state = StateActivated
	return nil
}

func (i *Instance) callInit(ctx Context, cfg any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = apperrors.Recover(r)
		}
	}()
	return i.class.arch.Init(ctx, cfg)
}

// Dispose releases an activated instance. Calling it on an instance that
// is not activated is a no-op.
func (i *Instance) Dispose(ctx context.Context) (err error) {
	i.mu.Lock()
	if i.state != StateActivated {
		i.mu.Unlock()
		return nil
	}
	i.state = StateDisposed
	cfg := i.config
	i.mu.Unlock()

	dispose := i.class.arch.Dispose
	if dispose == nil {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			err = apperrors.Recover(r).WithDetail("plugin", i.Name())
		}
	}()
	if derr := dispose(ctx, cfg); derr != nil {
		return apperrors.WrapWithType(derr, apperrors.ErrorTypeInternal,
			fmt.Sprintf("plugin %q dispose failed", i.Name())).
			WithDetail("plugin", i.Name())
	}
	return nil
}

// Namespace invokes the namespace handler factory with the current
// configuration. Panics are returned as errors.
func (i *Instance) Namespace(ctx Context) (alias string, handlers Handlers, err error) {
	ns := i.class.arch.Namespace
	if ns == nil {
		return "", nil, nil
	}

	defer func() {
		if r := recover(); r != nil {
			handlers = nil
			err = apperrors.Recover(r)
		}
	}()
	handlers, err = ns.Handlers(ctx, i.Config())
	return ns.Alias, handlers, err
}

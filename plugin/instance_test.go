package plugin

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/leeforge/monitor/errors"
)

func TestActivate_CallsInitOnce(t *testing.T) {
	calls := 0
	c := MustDefine(Descriptor{Name: "p", Type: TypeConsumer}, Architecture{
		Init: func(Context, any) error { calls++; return nil },
	})
	inst, err := c.New(nil)
	require.NoError(t, err)

	ctx := newStubContext("p")
	require.NoError(t, inst.Activate(ctx))
	err = inst.Activate(ctx)

	assert.ErrorIs(t, err, apperrors.ErrAlreadyActivated)
	assert.Equal(t, 1, calls)
	assert.Equal(t, StateActivated, inst.State())
}

func TestActivate_FailureAllowsRetry(t *testing.T) {
	fail := true
	c := MustDefine(Descriptor{Name: "p", Type: TypeConsumer}, Architecture{
		Init: func(Context, any) error {
			if fail {
				return errors.New("boom")
			}
			return nil
		},
	})
	inst, _ := c.New(nil)

	err := inst.Activate(newStubContext("p"))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrActivation)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, StateConstructed, inst.State())

	fail = false
	require.NoError(t, inst.Activate(newStubContext("p")))
	assert.Equal(t, StateActivated, inst.State())
}

func TestActivate_RecoversPanic(t *testing.T) {
	c := MustDefine(Descriptor{Name: "p", Type: TypeConsumer}, Architecture{
		Init: func(Context, any) error { panic("bad init") },
	})
	inst, _ := c.New(nil)

	err := inst.Activate(newStubContext("p"))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrActivation)
	assert.ErrorIs(t, err, apperrors.ErrInternal)
}

func TestActivate_ReceivesConfig(t *testing.T) {
	var got any
	c := MustDefine(Descriptor{Name: "p", Type: TypeConsumer}, Architecture{
		Init: func(_ Context, cfg any) error { got = cfg; return nil },
	})
	inst, _ := c.New("cfg-value")

	require.NoError(t, inst.Activate(newStubContext("p")))
	assert.Equal(t, "cfg-value", got)
}

func TestConfigure(t *testing.T) {
	c := MustDefine(Descriptor{Name: "p", Type: TypeConsumer}, Architecture{Init: noopInit})
	inst, _ := c.New("a")

	require.NoError(t, inst.Configure("b"))
	assert.Equal(t, "b", inst.Config())

	require.NoError(t, inst.Activate(newStubContext("p")))
	err := inst.Configure("c")
	assert.ErrorIs(t, err, apperrors.ErrAlreadyActivated)
	assert.Equal(t, "b", inst.Config())
}

func TestDispose(t *testing.T) {
	disposed := 0
	c := MustDefine(Descriptor{Name: "p", Type: TypeConsumer}, Architecture{
		Init:    noopInit,
		Dispose: func(context.Context, any) error { disposed++; return nil },
	})
	inst, _ := c.New(nil)

	require.NoError(t, inst.Dispose(context.Background()))
	assert.Equal(t, 0, disposed, "dispose before activation is a no-op")

	require.NoError(t, inst.Activate(newStubContext("p")))
	require.NoError(t, inst.Dispose(context.Background()))
	require.NoError(t, inst.Dispose(context.Background()))
	assert.Equal(t, 1, disposed)
	assert.Equal(t, StateDisposed, inst.State())

	err := inst.Activate(newStubContext("p"))
	assert.ErrorIs(t, err, apperrors.ErrClosed)
}

func TestDispose_Error(t *testing.T) {
	c := MustDefine(Descriptor{Name: "p", Type: TypeConsumer}, Architecture{
		Init:    noopInit,
		Dispose: func(context.Context, any) error { return errors.New("flush failed") },
	})
	inst, _ := c.New(nil)
	require.NoError(t, inst.Activate(newStubContext("p")))

	err := inst.Dispose(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "flush failed")
}

func TestInstanceNamespace(t *testing.T) {
	calls := 0
	c := MustDefine(Descriptor{Name: "math", Type: TypeProducer, Events: []string{"result"}}, Architecture{
		Init: noopInit,
		Namespace: &NamespaceSpec{
			Alias: "math",
			Handlers: func(_ Context, cfg any) (Handlers, error) {
				calls++
				return Handlers{"add": func(a, b int) int { return a + b }}, nil
			},
		},
	})
	inst, _ := c.New(nil)
	require.True(t, inst.HasNamespace())

	alias, h, err := inst.Namespace(newStubContext("math"))
	require.NoError(t, err)
	assert.Equal(t, "math", alias)
	assert.Equal(t, 5, h["add"].(func(int, int) int)(2, 3))

	_, _, _ = inst.Namespace(newStubContext("math"))
	assert.Equal(t, 2, calls, "handlers are rebuilt on every call")
}

func TestInstanceNamespace_Panic(t *testing.T) {
	c := MustDefine(Descriptor{Name: "p", Type: TypeProducer, Events: []string{"e"}}, Architecture{
		Init: noopInit,
		Namespace: &NamespaceSpec{
			Alias:    "p",
			Handlers: func(Context, any) (Handlers, error) { panic("nope") },
		},
	})
	inst, _ := c.New(nil)

	_, h, err := inst.Namespace(newStubContext("p"))
	assert.Error(t, err)
	assert.Nil(t, h)
}

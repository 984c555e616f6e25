package authz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/leeforge/monitor/errors"
	"github.com/leeforge/monitor/event"
	"github.com/leeforge/monitor/monitor"
	"github.com/leeforge/monitor/plugin"
)

func TestNewEnforcer_RejectsBadPolicy(t *testing.T) {
	_, err := NewEnforcer([]string{"only-one"})
	assert.ErrorIs(t, err, apperrors.ErrConfiguration)
}

func TestEmitHook(t *testing.T) {
	enforcer, err := NewEnforcer(
		[]string{"admin", "user.*", "emit"},
		[]string{"svc", "billing.charged", "*"},
		[]string{"alice", "admin"},
	)
	require.NoError(t, err)

	m, err := monitor.New(monitor.Options{})
	require.NoError(t, err)
	m.Hook(HookID, EmitHook(enforcer))

	var delivered int
	m.Subscribe(func(context.Context, event.Event) error { delivered++; return nil })

	tests := []struct {
		name    string
		event   event.Event
		allowed bool
	}{
		{"role grants wildcard", event.New("user.created", 1, event.WithMetadata("subject", "alice")), true},
		{"wildcard action", event.New("billing.charged", 1, event.WithMetadata("subject", "svc")), true},
		{"no matching policy", event.New("billing.charged", 1, event.WithMetadata("subject", "alice")), false},
		{"missing subject", event.New("user.created", 1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := delivered
			err := m.Emit(context.Background(), tt.event)
			if tt.allowed {
				require.NoError(t, err)
				assert.Equal(t, before+1, delivered)
				return
			}
			assert.ErrorIs(t, err, apperrors.ErrHookRejected)
			assert.Equal(t, before, delivered)
		})
	}
}

func TestEmitHook_Options(t *testing.T) {
	enforcer, err := NewEnforcer([]string{"guest", "ping", "publish"})
	require.NoError(t, err)

	m, err := monitor.New(monitor.Options{})
	require.NoError(t, err)
	m.Hook(HookID, EmitHook(enforcer, WithSubjectKey("user"), WithAction("publish"), WithAnonymous("guest")))

	assert.NoError(t, m.Emit(context.Background(), event.New("ping", 1)))
	assert.ErrorIs(t, m.Emit(context.Background(), event.New("pong", 1)), apperrors.ErrHookRejected)
}

func TestPlugin(t *testing.T) {
	class, err := Define()
	require.NoError(t, err)

	inst, err := class.New(map[string]any{
		"policies": [][]string{{"ops", "deploy.*", "emit"}},
	})
	require.NoError(t, err)

	m, err := monitor.New(monitor.Options{Plugins: []*plugin.Instance{inst}})
	require.NoError(t, err)
	assert.Equal(t, []string{"authz/" + HookID}, m.Hooks())

	ok := event.New("deploy.started", 1, event.WithMetadata("subject", "ops"))
	denied := event.New("deploy.started", 1, event.WithMetadata("subject", "dev"))
	assert.NoError(t, m.Emit(context.Background(), ok))
	assert.ErrorIs(t, m.Emit(context.Background(), denied), apperrors.ErrHookRejected)
}

func TestPlugin_InvalidPolicies(t *testing.T) {
	class, err := Define()
	require.NoError(t, err)

	_, err = class.New(map[string]any{"policies": [][]string{{"a"}}})
	assert.ErrorIs(t, err, apperrors.ErrConfiguration)
}

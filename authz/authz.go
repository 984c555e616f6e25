// Package authz vetoes emissions whose subject is not allowed to emit the
// event type, using a casbin enforcer.
package authz

import (
	"context"
	"errors"
	"fmt"

	casbinlib "github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"

	apperrors "github.com/leeforge/monitor/errors"
	"github.com/leeforge/monitor/event"
	"github.com/leeforge/monitor/plugin"
)

// HookID is the id under which the authz hook is installed.
const HookID = "authz"

// Subjects may emit an event type when a policy (or a role they hold)
// matches it; objects support keyMatch wildcards such as "user.*".
const modelText = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && keyMatch(r.obj, p.obj) && (r.act == p.act || p.act == "*")
`

var errMissingSubject = errors.New("event has no subject")

// NewEnforcer builds an in-memory enforcer. Three-element policies are
// (subject, event pattern, action) rules; two-element policies assign a
// role: (member, role).
func NewEnforcer(policies ...[]string) (*casbinlib.Enforcer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, fmt.Errorf("failed to create model: %w", err)
	}

	enforcer, err := casbinlib.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("failed to create enforcer: %w", err)
	}

	for _, p := range policies {
		switch len(p) {
		case 3:
			_, err = enforcer.AddPolicy(p[0], p[1], p[2])
		case 2:
			_, err = enforcer.AddGroupingPolicy(p[0], p[1])
		default:
			err = fmt.Errorf("policy %v must have 2 or 3 fields", p)
		}
		if err != nil {
			return nil, apperrors.WrapWithType(err, apperrors.ErrorTypeConfiguration, "invalid authz policy")
		}
	}
	return enforcer, nil
}

type hookConfig struct {
	subjectKey string
	action     string
	anonymous  string
}

// Option customises EmitHook.
type Option func(*hookConfig)

// WithSubjectKey reads the subject from a different metadata key.
func WithSubjectKey(key string) Option {
	return func(c *hookConfig) { c.subjectKey = key }
}

// WithAction sets the action checked against policies.
func WithAction(action string) Option {
	return func(c *hookConfig) { c.action = action }
}

// WithAnonymous checks events without a subject as this subject instead of
// rejecting them.
func WithAnonymous(subject string) Option {
	return func(c *hookConfig) { c.anonymous = subject }
}

// EmitHook returns hook options whose emit stage rejects events the
// subject may not emit.
func EmitHook(enforcer *casbinlib.Enforcer, opts ...Option) plugin.HookOptions {
	cfg := hookConfig{subjectKey: event.MetaSubject, action: "emit"}
	for _, opt := range opts {
		opt(&cfg)
	}

	check := func(_ context.Context, e event.Event) error {
		subject := e.MetaString(cfg.subjectKey)
		if subject == "" {
			subject = cfg.anonymous
		}
		if subject == "" {
			return apperrors.NewHookRejected(HookID, e.Type, errMissingSubject)
		}

		allowed, err := enforcer.Enforce(subject, e.Type, cfg.action)
		if err != nil {
			return apperrors.NewHookRejected(HookID, e.Type, err)
		}
		if !allowed {
			return apperrors.NewHookRejected(HookID, e.Type,
				fmt.Errorf("subject %q may not %s %q", subject, cfg.action, e.Type)).
				WithDetail("subject", subject)
		}
		return nil
	}

	return plugin.HookOptions{
		Handlers: plugin.HookHandlers{Emit: []plugin.HookFunc{check}},
		Meta:     plugin.HookMeta{Description: "casbin emit authorization"},
	}
}

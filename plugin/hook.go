package plugin

import (
	"context"

	"github.com/leeforge/monitor/event"
)

// HookFunc is middleware run at one stage of an emission.
type HookFunc func(ctx context.Context, e event.Event) error

// HookHandlers groups a hook's stage handlers.
// Emit runs before delivery and may veto it, Receive runs after delivery and
// General runs on every emission whatever the outcome.
type HookHandlers struct {
	Receive []HookFunc
	Emit    []HookFunc
	General []HookFunc
}

// HookMeta is descriptive only; it does not affect execution order.
type HookMeta struct {
	Priority    int
	Description string
}

type HookOptions struct {
	Handlers HookHandlers
	Meta     HookMeta
}

// IsEmpty reports whether the hook has no handlers at all.
func (o HookOptions) IsEmpty() bool {
	h := o.Handlers
	return len(h.Receive) == 0 && len(h.Emit) == 0 && len(h.General) == 0
}

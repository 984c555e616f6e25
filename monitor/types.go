package monitor

import (
	"github.com/leeforge/monitor/event"
	"github.com/leeforge/monitor/plugin"
)

// Aliases so callers wiring a monitor rarely need to import plugin.
type (
	Handler      = event.Handler
	Subscription = plugin.Subscription
	HookFunc     = plugin.HookFunc
	HookHandlers = plugin.HookHandlers
	HookMeta     = plugin.HookMeta
	HookOptions  = plugin.HookOptions
)

// Pipeline stage names, used in handler errors and span events.
const (
	StageEmit      = "emit"
	StageSubscribe = "subscribe"
	StageOn        = "on"
	StageReceive   = "receive"
	StageGeneral   = "general"
)

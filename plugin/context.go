package plugin

import (
	"context"

	"github.com/leeforge/monitor/event"
	"github.com/leeforge/monitor/logging"
)

// Subscription represents an active subscription on the monitor.
type Subscription interface {
	// ID is unique within the owning monitor.
	ID() uint64
	// EventType is empty for catch-all subscriptions.
	EventType() string
	Unsubscribe()
}

// Context is what every plugin receives in Init, whatever its type.
type Context interface {
	PluginName() string
	Logger() logging.Logger
	// SetHook registers or replaces a hook owned by this plugin.
	SetHook(id string, opts HookOptions)
	RemoveHook(id string) bool
}

// ConsumerContext is handed to consumer plugins.
type ConsumerContext interface {
	Context
	On(eventType string, h event.Handler) Subscription
	Subscribe(h event.Handler) Subscription
	Off(eventType string, sub Subscription)
}

// ProducerContext is handed to producer plugins.
type ProducerContext interface {
	Context
	Emit(ctx context.Context, e event.Event) error
	NewEvent(eventType string, payload any, opts ...event.Option) event.Event
}

// DuplexContext is handed to plugins of type both.
type DuplexContext interface {
	ConsumerContext
	ProducerContext
}

// AsConsumer narrows ctx to its consumer capabilities.
func AsConsumer(ctx Context) (ConsumerContext, bool) {
	c, ok := ctx.(ConsumerContext)
	return c, ok
}

// AsProducer narrows ctx to its producer capabilities.
func AsProducer(ctx Context) (ProducerContext, bool) {
	p, ok := ctx.(ProducerContext)
	return p, ok
}

package monitor

import (
	"context"

	apperrors "github.com/leeforge/monitor/errors"
	"github.com/leeforge/monitor/event"
	"github.com/leeforge/monitor/logging"
	"github.com/leeforge/monitor/plugin"
)

// newContext builds the capability context matching the plugin's type.
// A consumer context has no Emit and a producer context has no On.
func newContext(c *Connection) plugin.Context {
	base := baseContext{conn: c}
	switch c.Type() {
	case plugin.TypeConsumer:
		return &consumerContext{baseContext: base, consumerOps: consumerOps{conn: c}}
	case plugin.TypeProducer:
		return &producerContext{baseContext: base, producerOps: producerOps{conn: c}}
	default:
		return &duplexContext{
			baseContext: base,
			consumerOps: consumerOps{conn: c},
			producerOps: producerOps{conn: c},
		}
	}
}

type baseContext struct {
	conn *Connection
}

func (b baseContext) PluginName() string     { return b.conn.Name() }
func (b baseContext) Logger() logging.Logger { return b.conn.logger }

func (b baseContext) SetHook(id string, opts HookOptions) {
	b.conn.SetHook(id, opts)
}

func (b baseContext) RemoveHook(id string) bool {
	return b.conn.RemoveHook(id)
}

type consumerOps struct {
	conn *Connection
}

func (o consumerOps) On(eventType string, h event.Handler) plugin.Subscription {
	if eventType == "" {
		o.conn.logger.Warn("ignoring On with empty event type")
		return inert
	}
	return o.conn.m.subscribe(o.conn, eventType, h)
}

func (o consumerOps) Subscribe(h event.Handler) plugin.Subscription {
	return o.conn.m.subscribe(o.conn, "", h)
}

func (o consumerOps) Off(eventType string, sub plugin.Subscription) {
	o.conn.m.Off(eventType, sub)
}

type producerOps struct {
	conn *Connection
}

// Emit sends e through the monitor. With strict events on, only event types
// listed in the plugin descriptor are accepted.
func (o producerOps) Emit(ctx context.Context, e event.Event) error {
	m := o.conn.m
	if m.strict && !o.conn.inst.Class().Declares(e.Type) {
		return apperrors.NewUndeclaredEvent(o.conn.Name(), e.Type)
	}
	return m.emit(ctx, o.conn.Name(), e)
}

func (o producerOps) NewEvent(eventType string, payload any, opts ...event.Option) event.Event {
	opts = append([]event.Option{event.WithStamper(o.conn.m.stamper)}, opts...)
	return event.New(eventType, payload, opts...)
}

type consumerContext struct {
	baseContext
	consumerOps
}

type producerContext struct {
	baseContext
	producerOps
}

type duplexContext struct {
	baseContext
	consumerOps
	producerOps
}

var (
	_ plugin.ConsumerContext = (*consumerContext)(nil)
	_ plugin.ProducerContext = (*producerContext)(nil)
	_ plugin.DuplexContext   = (*duplexContext)(nil)
)

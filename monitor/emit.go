package monitor

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	apperrors "github.com/leeforge/monitor/errors"
	"github.com/leeforge/monitor/event"
)

// delivery is the snapshot of tables taken at the start of an emission.
type delivery struct {
	hooks  []*hookEntry
	global []subscriberEntry
	typed  []subscriberEntry
}

func (m *Monitor) snapshot(eventType string) (delivery, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return delivery{}, false
	}
	return delivery{
		hooks:  append([]*hookEntry{}, m.hooks...),
		global: append([]subscriberEntry{}, m.global...),
		typed:  append([]subscriberEntry{}, m.typed[eventType]...),
	}, true
}

// Emit validates e and delivers it synchronously:
// emit hooks, catch-all subscribers, On handlers, receive hooks, then
// general hooks. The first error stops the first four stages and is
// returned. General hooks run on every emission, malformed ones included,
// and their errors are only logged.
func (m *Monitor) Emit(ctx context.Context, e event.Event) error {
	return m.emit(ctx, "", e)
}

func (m *Monitor) emit(ctx context.Context, source string, e event.Event) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}

	attrs := []attribute.KeyValue{attribute.String("event.type", e.Type)}
	if source != "" {
		attrs = append(attrs, attribute.String("event.source", source))
	}
	ctx, span := m.tracer.Start(ctx, "monitor.emit", trace.WithAttributes(attrs...))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}()

	snap, open := m.snapshot(e.Type)
	if !open {
		return apperrors.NewClosed("monitor is closed")
	}

	if err := e.Validate(); err != nil {
		m.stats.rejected.Add(1)
		m.runGeneral(ctx, snap.hooks, e)
		return err
	}
	m.stats.noteType(e.Type)
	m.stats.emitted.Add(1)

	err = m.deliver(ctx, span, snap, e)
	m.runGeneral(ctx, snap.hooks, e)
	return err
}

func (m *Monitor) deliver(ctx context.Context, span trace.Span, snap delivery, e event.Event) error {
	for _, h := range snap.hooks {
		for _, fn := range h.opts.Handlers.Emit {
			panicked, err := invoke(ctx, fn, e)
			if err == nil {
				continue
			}
			m.stats.rejected.Add(1)
			if panicked {
				return m.handlerFailure(StageEmit, h.key(), e, err)
			}
			m.logger.Debug("emission vetoed", zap.String("hook", h.key()), zap.String("event", e.Type), zap.Error(err))
			if apperrors.TypeOf(err) == apperrors.ErrorTypeHookRejected {
				return err
			}
			return apperrors.NewHookRejected(h.key(), e.Type, err)
		}
	}
	span.AddEvent(StageEmit)

	if err := m.fanOut(ctx, StageSubscribe, snap.global, e); err != nil {
		m.stats.failed.Add(1)
		return err
	}
	if err := m.fanOut(ctx, StageOn, snap.typed, e); err != nil {
		m.stats.failed.Add(1)
		return err
	}
	span.AddEvent("delivered", trace.WithAttributes(
		attribute.Int("subscribers", len(snap.global)+len(snap.typed)),
	))

	for _, h := range snap.hooks {
		for _, fn := range h.opts.Handlers.Receive {
			if _, err := invoke(ctx, fn, e); err != nil {
				m.stats.failed.Add(1)
				return m.handlerFailure(StageReceive, h.key(), e, err)
			}
		}
	}
	span.AddEvent(StageReceive)
	return nil
}

func (m *Monitor) fanOut(ctx context.Context, stage string, subs []subscriberEntry, e event.Event) error {
	for _, sub := range subs {
		if _, err := invoke(ctx, sub.handler, e); err != nil {
			return m.handlerFailure(stage, sub.owner, e, err)
		}
		m.stats.delivered.Add(1)
	}
	return nil
}

// runGeneral runs every general hook. Failures never reach the caller.
func (m *Monitor) runGeneral(ctx context.Context, hooks []*hookEntry, e event.Event) {
	for _, h := range hooks {
		for _, fn := range h.opts.Handlers.General {
			if _, err := invoke(ctx, fn, e); err != nil {
				m.logger.Warn("general hook failed",
					zap.String("hook", h.key()),
					zap.String("event", e.Type),
					zap.Error(err),
				)
			}
		}
	}
}

func (m *Monitor) handlerFailure(stage, owner string, e event.Event, cause error) error {
	herr := apperrors.NewHandler(stage, e.Type, cause)
	if owner != "" {
		herr.WithDetail("owner", owner)
	}
	if inner := apperrors.FromError(cause); inner != nil && len(inner.Stack) > 0 {
		herr.Stack = inner.Stack
	}
	m.logger.Warn("event handler failed",
		zap.String("stage", stage),
		zap.String("owner", owner),
		zap.String("event", e.Type),
		zap.Error(cause),
	)
	return herr
}

// invoke runs fn, converting a panic into an error.
func invoke(ctx context.Context, fn func(context.Context, event.Event) error, e event.Event) (panicked bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = apperrors.Recover(r)
			panicked = true
		}
	}()
	return false, fn(ctx, e)
}

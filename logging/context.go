package logging

import (
	"context"

	"go.uber.org/zap"
)

type loggerKey struct{}

// FromContext returns the Logger stored in ctx, or a no-op logger.
func FromContext(ctx context.Context) Logger {
	if ctx == nil {
		return NewNop()
	}
	if l, ok := ctx.Value(loggerKey{}).(Logger); ok {
		return l
	}
	return NewNop()
}

// ToContext stores the Logger in the context.
func ToContext(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// ForPlugin returns a child logger tagged with the plugin name.
func ForPlugin(logger Logger, name string) Logger {
	return logger.With(zap.String("plugin", name))
}

// ForEvent returns a child logger tagged with the event type.
func ForEvent(logger Logger, eventType string) Logger {
	return logger.With(zap.String("event", eventType))
}

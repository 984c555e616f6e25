package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/leeforge/monitor/logging"
)

type contextKey string

const (
	TraceIDKey    contextKey = "trace_id"
	TraceIDHeader            = "X-Trace-ID"
)

// TraceID reuses the caller's X-Trace-ID or generates one, echoes it on the
// response and stores a logger tagged with it in the request context.
func TraceID(logger logging.Logger) func(next http.Handler) http.Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			traceID := r.Header.Get(TraceIDHeader)
			if traceID == "" {
				traceID = uuid.NewString()
			}
			w.Header().Set(TraceIDHeader, traceID)

			ctx := context.WithValue(r.Context(), TraceIDKey, traceID)
			ctx = logging.ToContext(ctx, logger.With(zap.String("trace_id", traceID)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetTraceID returns the request trace id, or "".
func GetTraceID(ctx context.Context) string {
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok {
		return traceID
	}
	return ""
}

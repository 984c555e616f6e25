package middleware

import (
	"context"
	"net/http"
	"time"
)

type timingContextKey string

const StartTimeKey timingContextKey = "start_time"

// Timing records when the request started.
func Timing() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), StartTimeKey, time.Now())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetRequestDuration returns milliseconds since the request started.
func GetRequestDuration(ctx context.Context) int64 {
	if startTime, ok := ctx.Value(StartTimeKey).(time.Time); ok {
		return time.Since(startTime).Milliseconds()
	}
	return 0
}

package middleware

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	apperrors "github.com/leeforge/monitor/errors"
	"github.com/leeforge/monitor/http/responder"
	"github.com/leeforge/monitor/logging"
)

// RequestLogger logs one line per request using the logger stored by TraceID.
func RequestLogger() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", status),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("took", time.Since(start)),
			}

			logger := logging.FromContext(r.Context())
			switch {
			case status >= http.StatusInternalServerError:
				logger.Error("request failed", fields...)
			case status >= http.StatusBadRequest:
				logger.Warn("request rejected", fields...)
			default:
				logger.Info("request", fields...)
			}
		})
	}
}

// Recoverer turns a handler panic into a 500 response and logs the stack.
func Recoverer() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				appErr := apperrors.Recover(rec)
				logging.FromContext(r.Context()).Error("handler panic",
					zap.String("path", r.URL.Path),
					zap.Strings("stack", appErr.Stack),
					zap.Error(appErr),
				)
				responder.Error(w, appErr, responder.WithTraceID(GetTraceID(r.Context())))
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// Package responder writes JSON API responses.
package responder

import (
	"net/http"

	apperrors "github.com/leeforge/monitor/errors"
	"github.com/leeforge/monitor/json"
)

var encodeFailed = []byte(`{"error":{"type":"internal","code":"internal","message":"encode failed"},"meta":{}}`)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		status, raw = http.StatusInternalServerError, encodeFailed
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(raw)
}

// Write sends a success response with data.
func Write(w http.ResponseWriter, status int, data any, opts ...Option) {
	writeJSON(w, status, &Response{
		Data: data,
		Meta: *NewMeta(opts...),
	})
}

// OK responds with 200 OK and data.
func OK(w http.ResponseWriter, data any, opts ...Option) {
	Write(w, http.StatusOK, data, opts...)
}

// Accepted responds with 202 Accepted and data.
func Accepted(w http.ResponseWriter, data any, opts ...Option) {
	Write(w, http.StatusAccepted, data, opts...)
}

// Error responds with the status and body derived from err.
func Error(w http.ResponseWriter, err error, opts ...Option) {
	body := apperrors.ToResponse(err)
	writeJSON(w, apperrors.StatusOf(err), &Response{
		Error: &body,
		Meta:  *NewMeta(opts...),
	})
}

// NotFound responds with 404 for an unknown resource.
func NotFound(w http.ResponseWriter, resource string, id any, opts ...Option) {
	Error(w, apperrors.NewNotFound(resource, id), opts...)
}

package responder

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/leeforge/monitor/errors"
	"github.com/leeforge/monitor/json"
)

func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder) Response {
	t.Helper()
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	var resp Response
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

func TestWrite(t *testing.T) {
	rr := httptest.NewRecorder()
	Write(rr, http.StatusCreated, "hello", WithTraceID("trace"), WithTook(42))

	assert.Equal(t, http.StatusCreated, rr.Code)
	resp := decodeResponse(t, rr)
	assert.Equal(t, "hello", resp.Data)
	assert.Nil(t, resp.Error)
	assert.Equal(t, Meta{TraceId: "trace", Took: 42}, resp.Meta)
}

func TestError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		typ    string
	}{
		{"hook rejected", apperrors.NewHookRejected("authz", "x", errors.New("denied")), http.StatusForbidden, "hook_rejected"},
		{"malformed", apperrors.NewMalformedEvent("type", "is required"), http.StatusBadRequest, "malformed_event"},
		{"closed", apperrors.NewClosed("monitor is closed"), http.StatusServiceUnavailable, "closed"},
		{"foreign error", errors.New("boom"), http.StatusInternalServerError, "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			Error(rr, tt.err, WithTraceID("trace-err"))

			assert.Equal(t, tt.status, rr.Code)
			resp := decodeResponse(t, rr)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.typ, resp.Error.Type)
			assert.Equal(t, "trace-err", resp.Meta.TraceId)
			assert.Nil(t, resp.Data)
		})
	}
}

func TestNotFound(t *testing.T) {
	rr := httptest.NewRecorder()
	NotFound(rr, "plugin", "math")

	assert.Equal(t, http.StatusNotFound, rr.Code)
	resp := decodeResponse(t, rr)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "plugin", resp.Error.Details["resource"])
}

func TestWriteEncodeFailure(t *testing.T) {
	rr := httptest.NewRecorder()
	OK(rr, make(chan int))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	resp := decodeResponse(t, rr)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "internal", resp.Error.Type)
}

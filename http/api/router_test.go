package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leeforge/monitor/authz"
	"github.com/leeforge/monitor/event"
	"github.com/leeforge/monitor/json"
	"github.com/leeforge/monitor/logging"
	"github.com/leeforge/monitor/monitor"
	"github.com/leeforge/monitor/plugin"
)

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Type    string         `json:"type"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
	Meta struct {
		TraceId string `json:"traceId"`
	} `json:"meta"`
}

func newTestRouter(t *testing.T) (http.Handler, *monitor.Monitor, *[]event.Event) {
	t.Helper()

	mathClass, err := plugin.Define(
		plugin.Descriptor{Name: "math", Type: plugin.TypeProducer, Events: []string{"math.result"}},
		plugin.Architecture{
			Init: func(plugin.Context, any) error { return nil },
			Namespace: &plugin.NamespaceSpec{
				Alias: "math",
				Handlers: func(plugin.Context, any) (plugin.Handlers, error) {
					return plugin.Handlers{
						"sub": func(a, b int) int { return a - b },
						"add": func(a, b int) int { return a + b },
					}, nil
				},
			},
		},
	)
	require.NoError(t, err)

	var got []event.Event
	auditClass, err := plugin.Define(
		plugin.Descriptor{Name: "audit", Type: plugin.TypeConsumer},
		plugin.Architecture{Init: func(ctx plugin.Context, _ any) error {
			cc, _ := plugin.AsConsumer(ctx)
			cc.On("user.created", func(_ context.Context, e event.Event) error {
				got = append(got, e)
				return nil
			})
			cc.On("user.deleted", func(context.Context, event.Event) error {
				return errors.New("read only")
			})
			return nil
		}},
	)
	require.NoError(t, err)

	mathInst, err := mathClass.New(nil)
	require.NoError(t, err)
	auditInst, err := auditClass.New(nil)
	require.NoError(t, err)

	m, err := monitor.New(monitor.Options{Plugins: []*plugin.Instance{mathInst, auditInst}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close(context.Background()) })

	return NewRouter(m, logging.NewNop()), m, &got
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	req.Header.Set("X-Trace-ID", "trace-1")

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	assert.Equal(t, "trace-1", env.Meta.TraceId)
	return rr, env
}

func TestListPlugins(t *testing.T) {
	h, _, _ := newTestRouter(t)

	rr, env := do(t, h, http.MethodGet, "/plugins", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var views []PluginView
	require.NoError(t, json.Unmarshal(env.Data, &views))
	require.Len(t, views, 2)
	assert.Equal(t, "math", views[0].Name)
	assert.Equal(t, "producer", views[0].Type)
	assert.Equal(t, "activated", views[0].State)
	assert.Equal(t, []string{"math.result"}, views[0].Events)
	assert.Equal(t, "math", views[0].Namespace)
	assert.Equal(t, "audit", views[1].Name)
}

func TestGetPlugin(t *testing.T) {
	h, _, _ := newTestRouter(t)

	rr, env := do(t, h, http.MethodGet, "/plugins/audit", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var view PluginView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, "consumer", view.Type)

	rr, env = do(t, h, http.MethodGet, "/plugins/missing", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "not_found", env.Error.Type)
}

func TestNamespaces(t *testing.T) {
	h, _, _ := newTestRouter(t)

	rr, env := do(t, h, http.MethodGet, "/namespaces", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var out map[string][]string
	require.NoError(t, json.Unmarshal(env.Data, &out))
	assert.Equal(t, map[string][]string{"math": {"add", "sub"}}, out)
}

func TestEmit(t *testing.T) {
	h, m, got := newTestRouter(t)

	rr, env := do(t, h, http.MethodPost, "/events",
		`{"type":"user.created","payload":{"id":7},"timestamp":1700000000000,"metadata":{"tenant":"acme"}}`)
	require.Equal(t, http.StatusAccepted, rr.Code)

	var resp EmitResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, EmitResponse{Type: "user.created", Timestamp: 1700000000000}, resp)

	require.Len(t, *got, 1)
	assert.Equal(t, "acme", (*got)[0].MetaString("tenant"))
	assert.Equal(t, map[string]any{"id": float64(7)}, (*got)[0].Payload)
	assert.Equal(t, uint64(1), m.Stats().Emitted)

	rr, env = do(t, h, http.MethodGet, "/events/types", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var types []string
	require.NoError(t, json.Unmarshal(env.Data, &types))
	assert.Equal(t, []string{"user.created", "user.deleted"}, types)
}

func TestEmit_DropsReservedMetadata(t *testing.T) {
	var got []event.Event
	m, err := monitor.New(monitor.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close(context.Background()) })
	m.Subscribe(func(_ context.Context, e event.Event) error {
		got = append(got, e)
		return nil
	})
	h := NewRouter(m, logging.NewNop(), WithReservedMetadata("actor"))

	rr, _ := do(t, h, http.MethodPost, "/events",
		`{"type":"x","payload":1,"metadata":{"subject":"admin","origin":"node-b","actor":"root","tenant":"acme"}}`)
	require.Equal(t, http.StatusAccepted, rr.Code)

	require.Len(t, got, 1)
	assert.Equal(t, map[string]any{"tenant": "acme"}, got[0].Metadata)
}

func TestEmit_ClientSubjectCannotBypassAuthz(t *testing.T) {
	class, err := authz.Define()
	require.NoError(t, err)
	inst, err := class.New(map[string]any{
		"anonymous": "guest",
		"policies":  [][]string{{"admin", "*", "emit"}},
	})
	require.NoError(t, err)

	m, err := monitor.New(monitor.Options{Plugins: []*plugin.Instance{inst}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close(context.Background()) })
	var delivered int
	m.Subscribe(func(context.Context, event.Event) error { delivered++; return nil })

	rr, env := do(t, NewRouter(m, logging.NewNop()), http.MethodPost, "/events",
		`{"type":"user.created","payload":1,"metadata":{"subject":"admin"}}`)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "hook_rejected", env.Error.Type)
	assert.Zero(t, delivered)

	require.NoError(t, m.Emit(context.Background(),
		event.New("user.created", 1, event.WithMetadata(event.MetaSubject, "admin"))))
	assert.Equal(t, 1, delivered)
}

func TestEmit_Errors(t *testing.T) {
	h, _, _ := newTestRouter(t)

	tests := []struct {
		name   string
		body   string
		status int
		typ    string
	}{
		{"bad json", `{"type":`, http.StatusBadRequest, "configuration"},
		{"missing type", `{"payload":1}`, http.StatusBadRequest, "configuration"},
		{"missing payload", `{"type":"x"}`, http.StatusBadRequest, "malformed_event"},
		{"negative timestamp", `{"type":"x","payload":1,"timestamp":-1}`, http.StatusBadRequest, "malformed_event"},
		{"handler failure", `{"type":"user.deleted","payload":1}`, http.StatusInternalServerError, "handler"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr, env := do(t, h, http.MethodPost, "/events", tt.body)
			assert.Equal(t, tt.status, rr.Code)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.typ, env.Error.Type)
		})
	}
}

func TestStatsAndHooks(t *testing.T) {
	h, m, _ := newTestRouter(t)
	m.Hook("audit", plugin.HookOptions{Handlers: plugin.HookHandlers{
		General: []plugin.HookFunc{func(context.Context, event.Event) error { return nil }},
	}})

	rr, env := do(t, h, http.MethodGet, "/stats", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var stats monitor.Stats
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, 2, stats.Plugins)
	assert.Equal(t, 1, stats.Hooks)

	rr, env = do(t, h, http.MethodGet, "/hooks", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var hooks []string
	require.NoError(t, json.Unmarshal(env.Data, &hooks))
	assert.Equal(t, []string{"audit"}, hooks)
}

func TestEmit_AfterClose(t *testing.T) {
	h, m, _ := newTestRouter(t)
	require.NoError(t, m.Close(context.Background()))

	rr, env := do(t, h, http.MethodPost, "/events", `{"type":"x","payload":1}`)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "closed", env.Error.Type)
}

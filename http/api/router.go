// Package api exposes a monitor over HTTP for inspection and emission.
package api

import (
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/leeforge/monitor/event"
	"github.com/leeforge/monitor/http/binding"
	"github.com/leeforge/monitor/http/middleware"
	"github.com/leeforge/monitor/http/responder"
	"github.com/leeforge/monitor/logging"
	"github.com/leeforge/monitor/monitor"
)

type handler struct {
	m        *monitor.Monitor
	reserved map[string]struct{}
}

// Option customises the router.
type Option func(*handler)

// WithReservedMetadata adds metadata keys that POST /events drops from the
// request body. The subject and origin keys are always reserved.
func WithReservedMetadata(keys ...string) Option {
	return func(h *handler) {
		for _, k := range keys {
			if k != "" {
				h.reserved[k] = struct{}{}
			}
		}
	}
}

// NewRouter mounts the monitor endpoints on a chi router.
func NewRouter(m *monitor.Monitor, logger logging.Logger, opts ...Option) http.Handler {
	h := &handler{
		m: m,
		reserved: map[string]struct{}{
			event.MetaSubject: {},
			event.MetaOrigin:  {},
		},
	}
	for _, opt := range opts {
		opt(h)
	}

	r := chi.NewRouter()
	r.Use(
		middleware.TraceID(logger),
		middleware.Timing(),
		middleware.RequestLogger(),
		middleware.Recoverer(),
	)

	r.Get("/plugins", h.listPlugins)
	r.Get("/plugins/{name}", h.getPlugin)
	r.Get("/stats", h.stats)
	r.Get("/hooks", h.hooks)
	r.Get("/namespaces", h.namespaces)
	r.Get("/events/types", h.eventTypes)
	r.Post("/events", h.emit)
	return r
}

func meta(r *http.Request) []responder.Option {
	return []responder.Option{
		responder.WithTraceID(middleware.GetTraceID(r.Context())),
		responder.WithTook(middleware.GetRequestDuration(r.Context())),
	}
}

// PluginView describes one registered plugin.
type PluginView struct {
	Name      string   `json:"name"`
	Type      string   `json:"type"`
	Signature string   `json:"signature"`
	State     string   `json:"state"`
	Events    []string `json:"events,omitempty"`
	Namespace string   `json:"namespace,omitempty"`
	Hooks     []string `json:"hooks,omitempty"`
}

func viewOf(c *monitor.Connection) PluginView {
	inst := c.Instance()
	return PluginView{
		Name:      inst.Name(),
		Type:      string(inst.Type()),
		Signature: inst.Signature().String(),
		State:     inst.State().String(),
		Events:    inst.Events(),
		Namespace: inst.NamespaceAlias(),
		Hooks:     c.HookIDs(),
	}
}

func (h *handler) listPlugins(w http.ResponseWriter, r *http.Request) {
	conns := h.m.Connections()
	views := make([]PluginView, 0, len(conns))
	for _, c := range conns {
		views = append(views, viewOf(c))
	}
	responder.OK(w, views, meta(r)...)
}

func (h *handler) getPlugin(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	for _, c := range h.m.Connections() {
		if c.Name() == name {
			responder.OK(w, viewOf(c), meta(r)...)
			return
		}
	}
	responder.NotFound(w, "plugin", name, meta(r)...)
}

func (h *handler) stats(w http.ResponseWriter, r *http.Request) {
	responder.OK(w, h.m.Stats(), meta(r)...)
}

func (h *handler) hooks(w http.ResponseWriter, r *http.Request) {
	responder.OK(w, h.m.Hooks(), meta(r)...)
}

func (h *handler) eventTypes(w http.ResponseWriter, r *http.Request) {
	responder.OK(w, h.m.EventTypes(), meta(r)...)
}

// namespaces lists each alias with its handler names.
func (h *handler) namespaces(w http.ResponseWriter, r *http.Request) {
	ns, err := h.m.Namespaces()
	if err != nil {
		responder.Error(w, err, meta(r)...)
		return
	}
	out := make(map[string][]string, ns.Len())
	for _, alias := range ns.Aliases() {
		handlers, _ := ns.Get(alias)
		names := make([]string, 0, len(handlers))
		for name := range handlers {
			names = append(names, name)
		}
		sort.Strings(names)
		out[alias] = names
	}
	responder.OK(w, out, meta(r)...)
}

// EmitRequest is the body of POST /events.
type EmitRequest struct {
	Type      string         `json:"type" validate:"required,max=256"`
	Payload   any            `json:"payload"`
	Timestamp *int64         `json:"timestamp,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// EmitResponse echoes the accepted event.
type EmitResponse struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

func (h *handler) emit(w http.ResponseWriter, r *http.Request) {
	var req EmitRequest
	if err := binding.JSON(r, &req); err != nil {
		responder.Error(w, err, meta(r)...)
		return
	}

	opts := make([]event.Option, 0, len(req.Metadata)+1)
	if req.Timestamp != nil {
		opts = append(opts, event.WithTimestamp(*req.Timestamp))
	}
	for k, v := range req.Metadata {
		if _, reserved := h.reserved[k]; reserved {
			logging.FromContext(r.Context()).Warn("dropping reserved metadata key", zap.String("key", k))
			continue
		}
		opts = append(opts, event.WithMetadata(k, v))
	}
	e := event.New(req.Type, req.Payload, opts...)

	if err := h.m.Emit(r.Context(), e); err != nil {
		responder.Error(w, err, meta(r)...)
		return
	}
	responder.Accepted(w, EmitResponse{Type: e.Type, Timestamp: e.Timestamp}, meta(r)...)
}

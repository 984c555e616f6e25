// Package monitor is an in-process event bus. Plugins register through
// capability-scoped contexts, emit and receive typed events, install hook
// middleware and publish namespaces of callable handlers.
package monitor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	apperrors "github.com/leeforge/monitor/errors"
	"github.com/leeforge/monitor/event"
	"github.com/leeforge/monitor/logging"
	"github.com/leeforge/monitor/plugin"
)

const tracerName = "github.com/leeforge/monitor"

// Options configures a Monitor.
type Options struct {
	// Plugins are registered in order; the first failure aborts New.
	Plugins []*plugin.Instance
	Logger  logging.Logger
	Tracer  trace.Tracer
	// StrictEvents rejects producer emissions of undeclared event types.
	// Defaults to true.
	StrictEvents *bool
	// Clock feeds event timestamps built through producer contexts.
	Clock func() time.Time
}

// Monitor routes events between plugins.
type Monitor struct {
	logger  logging.Logger
	tracer  trace.Tracer
	stamper *event.Stamper
	strict  bool

	mu       sync.RWMutex
	conns    []*Connection
	bySig    map[plugin.Signature]*Connection
	aliases  map[string]*Connection
	reserved map[plugin.Signature]string
	staging  map[*Connection]struct{}
	global   []subscriberEntry
	typed    map[string][]subscriberEntry
	hooks    []*hookEntry
	closed   bool

	nextID  atomic.Uint64
	hookSeq atomic.Uint64
	stats   counters
}

// New creates a monitor and registers opts.Plugins in order.
func New(opts Options) (*Monitor, error) {
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(tracerName)
	}
	strict := true
	if opts.StrictEvents != nil {
		strict = *opts.StrictEvents
	}

	m := &Monitor{
		logger:   opts.Logger.Named("monitor"),
		tracer:   opts.Tracer,
		stamper:  event.NewStamper(opts.Clock),
		strict:   strict,
		bySig:    make(map[plugin.Signature]*Connection),
		aliases:  make(map[string]*Connection),
		reserved: make(map[plugin.Signature]string),
		staging:  make(map[*Connection]struct{}),
		typed:    make(map[string][]subscriberEntry),
	}

	for _, inst := range opts.Plugins {
		if err := m.Register(inst); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Register activates inst and connects it to the bus. Either the plugin is
// fully registered or the monitor is left exactly as it was.
func (m *Monitor) Register(inst *plugin.Instance) error {
	if inst == nil {
		return apperrors.NewConfiguration("plugin instance is nil")
	}
	name := inst.Name()
	sig := inst.Signature()
	alias := ""
	if inst.Type().IsProducer() {
		alias = inst.NamespaceAlias()
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return apperrors.NewClosed("monitor is closed")
	}
	if err := m.checkUniqueLocked(name, sig, alias); err != nil {
		m.mu.Unlock()
		m.logger.Warn("plugin rejected", zap.String("plugin", name), zap.Error(err))
		return err
	}
	conn := newConnection(m, inst)
	m.reserved[sig] = alias
	m.staging[conn] = struct{}{}
	m.mu.Unlock()

	err := inst.Activate(conn.ctx)

	m.mu.Lock()
	delete(m.reserved, sig)
	delete(m.staging, conn)
	if err == nil && m.closed {
		err = apperrors.NewClosed("monitor closed during registration")
		m.mu.Unlock()
		_ = inst.Dispose(context.Background())
		return err
	}
	if err != nil {
		conn.pending = nil
		m.mu.Unlock()
		m.logger.Error("plugin activation failed", zap.String("plugin", name), zap.Error(err))
		return err
	}

	conn.commitLocked()
	m.conns = append(m.conns, conn)
	m.bySig[sig] = conn
	if alias != "" {
		m.aliases[alias] = conn
	}
	m.mu.Unlock()

	m.logger.Info("plugin registered",
		zap.String("plugin", name),
		zap.String("type", string(inst.Type())),
		zap.String("signature", sig.String()),
	)
	return nil
}

func (m *Monitor) checkUniqueLocked(name string, sig plugin.Signature, alias string) error {
	if _, exists := m.bySig[sig]; exists {
		return apperrors.NewDuplicatePlugin(name, sig.String())
	}
	if _, exists := m.reserved[sig]; exists {
		return apperrors.NewDuplicatePlugin(name, sig.String())
	}
	if alias == "" {
		return nil
	}
	if _, exists := m.aliases[alias]; exists {
		return apperrors.NewDuplicateNamespace(alias)
	}
	for _, reserved := range m.reserved {
		if reserved == alias {
			return apperrors.NewDuplicateNamespace(alias)
		}
	}
	return nil
}

// PluginNames returns plugin names in registration order.
func (m *Monitor) PluginNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.conns))
	for _, c := range m.conns {
		names = append(names, c.Name())
	}
	return names
}

// HasPlugin reports whether a plugin with signature sig is registered.
func (m *Monitor) HasPlugin(sig plugin.Signature) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.bySig[sig]
	return ok
}

// Connection returns the connection for sig.
func (m *Monitor) Connection(sig plugin.Signature) (*Connection, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.bySig[sig]
	return c, ok
}

// Connections returns all connections in registration order.
func (m *Monitor) Connections() []*Connection {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*Connection{}, m.conns...)
}

// Namespaces aggregates the namespaces of every producer connection. Handlers
// are rebuilt on each call so they see current configuration.
func (m *Monitor) Namespaces() (*plugin.Namespaces, error) {
	ns := plugin.NewNamespaces()
	for _, c := range m.Connections() {
		alias, handlers, ok := c.Namespace()
		if !ok {
			continue
		}
		if err := ns.Register(alias, handlers); err != nil {
			return nil, err
		}
	}
	return ns, nil
}

func (m *Monitor) isClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

// Close disposes plugins in reverse registration order and empties every
// table. Later Emit and Register calls fail. Close is idempotent.
func (m *Monitor) Close(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	conns := m.conns
	for _, c := range conns {
		c.detachLocked()
	}
	m.conns = nil
	m.bySig = make(map[plugin.Signature]*Connection)
	m.aliases = make(map[string]*Connection)
	m.global = nil
	m.typed = make(map[string][]subscriberEntry)
	m.hooks = nil
	m.mu.Unlock()

	chain := apperrors.NewErrorChain()
	for i := len(conns) - 1; i >= 0; i-- {
		c := conns[i]
		if err := c.inst.Dispose(ctx); err != nil {
			m.logger.Error("plugin dispose failed", zap.String("plugin", c.Name()), zap.Error(err))
			chain.Add(err)
		}
	}

	m.logger.Info("monitor closed", zap.Int("plugins", len(conns)))
	return chain.ErrOrNil()
}

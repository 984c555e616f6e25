package monitor

import (
	"maps"
	"slices"

	"go.uber.org/zap"

	"github.com/leeforge/monitor/logging"
	"github.com/leeforge/monitor/plugin"
)

// Connection binds one plugin instance to a monitor. It owns the plugin's
// hooks and exposes its namespace.
type Connection struct {
	m      *Monitor
	inst   *plugin.Instance
	ctx    plugin.Context
	logger logging.Logger

	// guarded by m.mu
	hooks   map[string]*hookEntry
	pending []*subscription
	live    bool
}

func newConnection(m *Monitor, inst *plugin.Instance) *Connection {
	c := &Connection{
		m:      m,
		inst:   inst,
		logger: logging.ForPlugin(m.logger, inst.Name()),
		hooks:  make(map[string]*hookEntry),
	}
	c.ctx = newContext(c)
	return c
}

func (c *Connection) Instance() *plugin.Instance { return c.inst }
func (c *Connection) Name() string               { return c.inst.Name() }
func (c *Connection) Type() plugin.Type          { return c.inst.Type() }
func (c *Connection) IsProducer() bool           { return c.inst.Type().IsProducer() }
func (c *Connection) IsConsumer() bool           { return c.inst.Type().IsConsumer() }

// Context returns the capability context handed to the plugin's Init.
func (c *Connection) Context() plugin.Context { return c.ctx }

// SetHook registers or replaces a hook owned by this plugin. Hooks set while
// the plugin is still initialising take effect once registration succeeds.
func (c *Connection) SetHook(id string, opts HookOptions) {
	m := c.m
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := c.hooks[id]; ok {
		entry := &hookEntry{seq: existing.seq, id: id, owner: c, opts: opts}
		c.hooks[id] = entry
		if c.live {
			m.replaceHookLocked(existing, entry)
		}
		return
	}
	entry := &hookEntry{
		seq:   m.hookSeq.Add(1),
		id:    id,
		owner: c,
		opts:  opts,
	}
	c.hooks[id] = entry
	if c.live {
		m.insertHookLocked(entry)
	}
}

func (c *Connection) GetHook(id string) (HookOptions, bool) {
	c.m.mu.RLock()
	defer c.m.mu.RUnlock()

	h, ok := c.hooks[id]
	if !ok {
		return HookOptions{}, false
	}
	return h.opts, true
}

func (c *Connection) RemoveHook(id string) bool {
	m := c.m
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := c.hooks[id]; !ok {
		return false
	}
	delete(c.hooks, id)
	if c.live {
		m.removeHookLocked(c, id)
	}
	return true
}

// ClearHooks removes every hook owned by this plugin.
func (c *Connection) ClearHooks() {
	m := c.m
	m.mu.Lock()
	defer m.mu.Unlock()

	for id := range c.hooks {
		if c.live {
			m.removeHookLocked(c, id)
		}
	}
	clear(c.hooks)
}

// HookIDs returns the plugin's hook ids, sorted.
func (c *Connection) HookIDs() []string {
	c.m.mu.RLock()
	defer c.m.mu.RUnlock()
	return slices.Sorted(maps.Keys(c.hooks))
}

func (c *Connection) HasNamespace() bool {
	return c.IsProducer() && c.inst.HasNamespace()
}

// Namespace builds the plugin's handlers from its current configuration.
// Nothing is cached. A failing, panicking or nil factory is logged and
// reported as no namespace.
func (c *Connection) Namespace() (string, plugin.Handlers, bool) {
	if !c.HasNamespace() {
		return "", nil, false
	}

	alias, handlers, err := c.inst.Namespace(c.ctx)
	if err != nil {
		c.logger.Warn("namespace handlers failed", zap.String("alias", c.inst.NamespaceAlias()), zap.Error(err))
		return "", nil, false
	}
	if handlers == nil {
		c.logger.Warn("namespace handlers are nil", zap.String("alias", alias))
		return "", nil, false
	}
	return alias, handlers, true
}

// commitLocked moves staged subscriptions and hooks into the monitor tables.
func (c *Connection) commitLocked() {
	m := c.m
	for _, sub := range c.pending {
		m.addEntryLocked(sub.eventType, sub.entry)
	}
	c.pending = nil
	for _, entry := range c.hooks {
		m.insertHookLocked(entry)
	}
	c.live = true
}

// detachLocked drops everything the connection contributed to the tables.
func (c *Connection) detachLocked() {
	m := c.m
	for id := range c.hooks {
		m.removeHookLocked(c, id)
	}
	c.pending = nil
	c.live = false
}

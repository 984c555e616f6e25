package plugin

import (
	"github.com/leeforge/monitor/logging"
)

// stubContext satisfies Context for lifecycle tests that run without a monitor.
type stubContext struct {
	name  string
	hooks map[string]HookOptions
}

func newStubContext(name string) *stubContext {
	return &stubContext{name: name, hooks: map[string]HookOptions{}}
}

func (c *stubContext) PluginName() string                  { return c.name }
func (c *stubContext) Logger() logging.Logger              { return logging.NewNop() }
func (c *stubContext) SetHook(id string, opts HookOptions) { c.hooks[id] = opts }
func (c *stubContext) RemoveHook(id string) bool {
	_, ok := c.hooks[id]
	delete(c.hooks, id)
	return ok
}

var _ Context = (*stubContext)(nil)

func noopInit(Context, any) error { return nil }

package monitor

import (
	"sync"
	"sync/atomic"
)

// Stats is a point-in-time view of the monitor.
type Stats struct {
	Plugins           int `json:"plugins"`
	GlobalSubscribers int `json:"globalSubscribers"`
	TypedHandlers     int `json:"typedHandlers"`
	HandlerTypes      int `json:"handlerTypes"`
	Hooks             int `json:"hooks"`

	// Emitted counts emissions that passed validation.
	Emitted uint64 `json:"emitted"`
	// Delivered counts successful subscriber and On handler invocations.
	Delivered uint64 `json:"delivered"`
	// Failed counts emissions aborted by a handler or receive hook error.
	Failed uint64 `json:"failed"`
	// Rejected counts malformed events and emit hook vetoes.
	Rejected uint64 `json:"rejected"`
	// TypesSeen is the number of distinct event types that passed validation.
	TypesSeen int `json:"typesSeen"`
}

type counters struct {
	emitted   atomic.Uint64
	delivered atomic.Uint64
	failed    atomic.Uint64
	rejected  atomic.Uint64

	typesMu sync.Mutex
	types   map[string]struct{}
}

func (c *counters) noteType(t string) {
	c.typesMu.Lock()
	if c.types == nil {
		c.types = make(map[string]struct{})
	}
	c.types[t] = struct{}{}
	c.typesMu.Unlock()
}

func (c *counters) typesSeen() int {
	c.typesMu.Lock()
	defer c.typesMu.Unlock()
	return len(c.types)
}

// Stats returns table sizes and delivery counters.
func (m *Monitor) Stats() Stats {
	m.mu.RLock()
	s := Stats{
		Plugins:           len(m.conns),
		GlobalSubscribers: len(m.global),
		Hooks:             len(m.hooks),
	}
	for _, subs := range m.typed {
		if len(subs) == 0 {
			continue
		}
		s.HandlerTypes++
		s.TypedHandlers += len(subs)
	}
	m.mu.RUnlock()

	s.Emitted = m.stats.emitted.Load()
	s.Delivered = m.stats.delivered.Load()
	s.Failed = m.stats.failed.Load()
	s.Rejected = m.stats.rejected.Load()
	s.TypesSeen = m.stats.typesSeen()
	return s
}

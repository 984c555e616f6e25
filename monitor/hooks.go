package monitor

import (
	"slices"
)

// hookEntry is one registered hook. seq fixes its position in the pipeline;
// replacing a hook keeps the original seq.
type hookEntry struct {
	seq   uint64
	id    string
	owner *Connection
	opts  HookOptions
}

// key is the identifier reported by Hooks: the bare id for monitor hooks,
// "plugin/id" for hooks owned by a plugin.
func (h *hookEntry) key() string {
	if h.owner == nil {
		return h.id
	}
	return h.owner.Name() + "/" + h.id
}

// Hook registers or replaces a monitor-level hook.
func (m *Monitor) Hook(id string, opts HookOptions) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing := m.findHookLocked(nil, id); existing != nil {
		m.replaceHookLocked(existing, &hookEntry{seq: existing.seq, id: id, opts: opts})
		return
	}
	m.insertHookLocked(&hookEntry{
		seq:  m.hookSeq.Add(1),
		id:   id,
		opts: opts,
	})
}

// RemoveHook removes a monitor-level hook.
func (m *Monitor) RemoveHook(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removeHookLocked(nil, id)
}

// Hooks returns every active hook key in execution order.
func (m *Monitor) Hooks() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.hooks))
	for _, h := range m.hooks {
		keys = append(keys, h.key())
	}
	return keys
}

func (m *Monitor) findHookLocked(owner *Connection, id string) *hookEntry {
	for _, h := range m.hooks {
		if h.owner == owner && h.id == id {
			return h
		}
	}
	return nil
}

func (m *Monitor) insertHookLocked(entry *hookEntry) {
	i, _ := slices.BinarySearchFunc(m.hooks, entry.seq, func(h *hookEntry, seq uint64) int {
		switch {
		case h.seq < seq:
			return -1
		case h.seq > seq:
			return 1
		}
		return 0
	})
	m.hooks = slices.Insert(slices.Clip(m.hooks), i, entry)
}

// replaceHookLocked swaps old for entry at the same position. Entries are
// never mutated once published, since Emit reads them without the lock.
func (m *Monitor) replaceHookLocked(old, entry *hookEntry) {
	if i := slices.Index(m.hooks, old); i >= 0 {
		m.hooks = slices.Clone(m.hooks)
		m.hooks[i] = entry
	}
}

func (m *Monitor) removeHookLocked(owner *Connection, id string) bool {
	for i, h := range m.hooks {
		if h.owner == owner && h.id == id {
			m.hooks = slices.Delete(slices.Clone(m.hooks), i, i+1)
			return true
		}
	}
	return false
}

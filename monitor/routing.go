package monitor

import (
	"sort"

	"go.uber.org/zap"

	"github.com/leeforge/monitor/event"
	"github.com/leeforge/monitor/plugin"
)

type subscriberEntry struct {
	id      uint64
	owner   string
	handler event.Handler
}

// subscription implements plugin.Subscription.
type subscription struct {
	m         *Monitor
	conn      *Connection
	eventType string
	id        uint64
	entry     subscriberEntry
}

func (s *subscription) ID() uint64        { return s.id }
func (s *subscription) EventType() string { return s.eventType }

func (s *subscription) Unsubscribe() {
	if s.m == nil {
		return
	}
	s.m.removeSubscription(s.eventType, s.id)
}

// inert is returned for rejected subscriptions; unsubscribing it does nothing.
var inert = &subscription{}

// On registers h for events of eventType. Handlers run in registration order.
func (m *Monitor) On(eventType string, h Handler) Subscription {
	return m.subscribe(nil, eventType, h)
}

// Subscribe registers h for every event, ahead of typed handlers.
func (m *Monitor) Subscribe(h Handler) Subscription {
	return m.subscribe(nil, "", h)
}

// Off removes sub from eventType's handlers. Unknown subscriptions are ignored.
func (m *Monitor) Off(eventType string, sub Subscription) {
	if sub == nil || eventType == "" || sub.EventType() != eventType {
		return
	}
	m.removeSubscription(eventType, sub.ID())
}

// Unsubscribe removes a catch-all subscription. Unknown subscriptions are ignored.
func (m *Monitor) Unsubscribe(sub Subscription) {
	if sub == nil || sub.EventType() != "" {
		return
	}
	m.removeSubscription("", sub.ID())
}

func (m *Monitor) subscribe(conn *Connection, eventType string, h Handler) Subscription {
	owner := ""
	if conn != nil {
		owner = conn.Name()
	}
	if h == nil {
		m.logger.Warn("ignoring nil handler", zap.String("plugin", owner), zap.String("event", eventType))
		return inert
	}

	id := m.nextID.Add(1)
	sub := &subscription{
		m:         m,
		conn:      conn,
		eventType: eventType,
		id:        id,
		entry:     subscriberEntry{id: id, owner: owner, handler: h},
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if conn != nil && !conn.live {
		conn.pending = append(conn.pending, sub)
		return sub
	}
	m.addEntryLocked(eventType, sub.entry)
	return sub
}

func (m *Monitor) addEntryLocked(eventType string, entry subscriberEntry) {
	if eventType == "" {
		m.global = append(m.global, entry)
		return
	}
	m.typed[eventType] = append(m.typed[eventType], entry)
}

func (m *Monitor) removeSubscription(eventType string, id uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for conn := range m.staging {
		for i, sub := range conn.pending {
			if sub.id == id {
				conn.pending = append(conn.pending[:i:i], conn.pending[i+1:]...)
				return
			}
		}
	}

	if eventType == "" {
		m.global = without(m.global, id)
		return
	}
	subs := without(m.typed[eventType], id)
	if len(subs) == 0 {
		delete(m.typed, eventType)
		return
	}
	m.typed[eventType] = subs
}

// without returns a fresh slice so snapshots taken by Emit stay intact.
func without(entries []subscriberEntry, id uint64) []subscriberEntry {
	for i, entry := range entries {
		if entry.id == id {
			out := make([]subscriberEntry, 0, len(entries)-1)
			out = append(out, entries[:i]...)
			return append(out, entries[i+1:]...)
		}
	}
	return entries
}

// EventTypes returns the sorted event types that have at least one On handler.
func (m *Monitor) EventTypes() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	types := make([]string, 0, len(m.typed))
	for t, subs := range m.typed {
		if len(subs) > 0 {
			types = append(types, t)
		}
	}
	sort.Strings(types)
	return types
}

var _ plugin.Subscription = (*subscription)(nil)

package monitor

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leeforge/monitor/event"
	"github.com/leeforge/monitor/plugin"
)

func TestHookReplace_KeepsPosition(t *testing.T) {
	var log []string
	var pc plugin.ConsumerContext
	c := consumerClass(t, "p", func(cc plugin.ConsumerContext) error { pc = cc; return nil })
	m := newTestMonitor(t)

	m.Hook("a", HookOptions{Handlers: HookHandlers{Emit: []HookFunc{recording(&log, "a1")}}})
	require.NoError(t, m.Register(mustInstance(t, c, nil)))
	pc.SetHook("b", HookOptions{Handlers: HookHandlers{Emit: []HookFunc{recording(&log, "b1")}}})
	m.Hook("c", HookOptions{Handlers: HookHandlers{Emit: []HookFunc{recording(&log, "c1")}}})

	m.Hook("a", HookOptions{Handlers: HookHandlers{Emit: []HookFunc{recording(&log, "a2")}}})
	pc.SetHook("b", HookOptions{Handlers: HookHandlers{Emit: []HookFunc{recording(&log, "b2")}}})

	require.NoError(t, m.Emit(context.Background(), event.New("x", 1)))
	assert.Equal(t, []string{"a2", "b2", "c1"}, log)
	assert.Equal(t, []string{"a", "p/b", "c"}, m.Hooks())
}

// Run with -race: emissions overlap hook replacement and subscription churn.
func TestEmit_ConcurrentWithTableChanges(t *testing.T) {
	var pc plugin.ConsumerContext
	c := consumerClass(t, "p", func(cc plugin.ConsumerContext) error { pc = cc; return nil })
	m := newTestMonitor(t, mustInstance(t, c, nil))

	var hits atomic.Int64
	hook := func(context.Context, event.Event) error { hits.Add(1); return nil }
	opts := HookOptions{Handlers: HookHandlers{
		Emit:    []HookFunc{hook},
		Receive: []HookFunc{hook},
		General: []HookFunc{hook},
	}}
	m.Hook("h", opts)
	pc.SetHook("h", opts)

	const rounds = 500
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				assert.NoError(t, m.Emit(context.Background(), event.New("x", i)))
			}
		}()
	}
	wg.Add(3)
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			m.Hook("h", opts)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			pc.SetHook("h", opts)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			sub := pc.On("x", func(context.Context, event.Event) error { return nil })
			all := m.Subscribe(func(context.Context, event.Event) error { return nil })
			pc.Off("x", sub)
			m.Unsubscribe(all)
		}
	}()
	wg.Wait()

	stats := m.Stats()
	assert.Equal(t, uint64(4*rounds), stats.Emitted)
	assert.Zero(t, stats.TypedHandlers)
	assert.Zero(t, stats.GlobalSubscribers)
	assert.Equal(t, int64(4*rounds*2*3), hits.Load())
}

package monitor

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/leeforge/monitor/logging"
	"github.com/leeforge/monitor/plugin"
)

func observedLogger() (logging.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return logging.FromZap(zap.New(core)), logs
}

func newTestMonitor(t *testing.T, plugins ...*plugin.Instance) *Monitor {
	t.Helper()
	m, err := New(Options{Plugins: plugins})
	require.NoError(t, err)
	return m
}

func mustInstance(t *testing.T, c *plugin.Class, cfg any) *plugin.Instance {
	t.Helper()
	inst, err := c.New(cfg)
	require.NoError(t, err)
	return inst
}

func consumerClass(t *testing.T, name string, init func(plugin.ConsumerContext) error) *plugin.Class {
	t.Helper()
	c, err := plugin.Define(
		plugin.Descriptor{Name: name, Type: plugin.TypeConsumer},
		plugin.Architecture{Init: func(ctx plugin.Context, _ any) error {
			cc, ok := plugin.AsConsumer(ctx)
			require.True(t, ok)
			return init(cc)
		}},
	)
	require.NoError(t, err)
	return c
}

// producerClass captures the producer context so tests can emit after
// registration.
func producerClass(t *testing.T, name string, events []string, out *plugin.ProducerContext) *plugin.Class {
	t.Helper()
	c, err := plugin.Define(
		plugin.Descriptor{Name: name, Type: plugin.TypeProducer, Events: events},
		plugin.Architecture{Init: func(ctx plugin.Context, _ any) error {
			pc, ok := plugin.AsProducer(ctx)
			require.True(t, ok)
			if out != nil {
				*out = pc
			}
			return nil
		}},
	)
	require.NoError(t, err)
	return c
}

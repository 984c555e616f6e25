// Package runtime assembles a monitor from configuration and a catalog of
// plugin classes.
package runtime

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/leeforge/monitor/config"
	apperrors "github.com/leeforge/monitor/errors"
	"github.com/leeforge/monitor/http/api"
	"github.com/leeforge/monitor/logging"
	"github.com/leeforge/monitor/monitor"
	"github.com/leeforge/monitor/plugin"
)

// DefaultShutdownTimeout bounds Shutdown when the caller's context has no deadline.
const DefaultShutdownTimeout = 30 * time.Second

// Config holds configuration for creating a new Runtime.
type Config struct {
	Monitor *config.MonitorConfig
	Logger  logging.Logger
	Tracer  trace.Tracer
}

// RegisterOptions tune how a class takes part in Bootstrap.
type RegisterOptions struct {
	// Optional plugins that fail to build or activate are logged and skipped.
	Optional bool
}

type entry struct {
	class *plugin.Class
	opts  RegisterOptions
}

// Runtime builds and owns one monitor.
type Runtime struct {
	cfg    *config.MonitorConfig
	logger logging.Logger
	tracer trace.Tracer

	mu        sync.RWMutex
	entries   []entry
	names     map[string]struct{}
	states    map[string]plugin.State
	errs      map[string]error
	bootOrder []string
	monitor   *monitor.Monitor
}

// NewRuntime creates a runtime. A nil monitor config means every plugin is
// enabled with empty settings.
func NewRuntime(cfg Config) *Runtime {
	if cfg.Monitor == nil {
		cfg.Monitor = &config.MonitorConfig{StrictEvents: true}
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNop()
	}
	return &Runtime{
		cfg:    cfg.Monitor,
		logger: cfg.Logger.Named("runtime"),
		tracer: cfg.Tracer,
		names:  make(map[string]struct{}),
		states: make(map[string]plugin.State),
		errs:   make(map[string]error),
	}
}

// Register adds a class to the catalog. Must be called before Bootstrap.
func (r *Runtime) Register(class *plugin.Class, opts ...RegisterOptions) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.monitor != nil {
		return apperrors.NewAlreadyActivated("runtime")
	}
	name := class.Name()
	if _, exists := r.names[name]; exists {
		return apperrors.NewDuplicatePlugin(name, class.Signature().String())
	}

	var o RegisterOptions
	if len(opts) > 0 {
		o = opts[0]
	}
	r.names[name] = struct{}{}
	r.entries = append(r.entries, entry{class: class, opts: o})
	r.logger.Debug("plugin class registered", zap.String("plugin", name), zap.String("type", string(class.Type())))
	return nil
}

// Bootstrap builds an instance per enabled class from its settings and
// registers them on a new monitor in catalog order. A required plugin
// failing aborts Bootstrap and closes the partial monitor.
func (r *Runtime) Bootstrap(ctx context.Context) (*monitor.Monitor, error) {
	startTime := time.Now()
	if ctx == nil {
		ctx = context.Background()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.monitor != nil {
		return nil, apperrors.NewAlreadyActivated("runtime")
	}

	m, err := monitor.New(monitor.Options{
		Logger:       r.logger.Named("monitor"),
		Tracer:       r.tracer,
		StrictEvents: r.cfg.StrictEventsOption(),
	})
	if err != nil {
		return nil, err
	}

	for _, e := range r.entries {
		if err := ctx.Err(); err != nil {
			_ = m.Close(context.Background())
			return nil, apperrors.WrapWithType(err, apperrors.ErrorTypeActivation, "bootstrap canceled")
		}

		name := e.class.Name()
		settings := r.cfg.PluginSettings(name)
		if !settings.IsEnabled() {
			r.logger.Info("plugin disabled by configuration", zap.String("plugin", name))
			continue
		}

		inst, err := e.class.NewFromSettings(settings)
		if err == nil {
			err = m.Register(inst)
		}
		if err != nil {
			if abortErr := r.handlePluginError(name, e.opts, err); abortErr != nil {
				_ = m.Close(context.Background())
				return nil, abortErr
			}
			continue
		}
		r.states[name] = inst.State()
		r.bootOrder = append(r.bootOrder, name)
	}

	r.monitor = m
	r.logger.Info("bootstrap completed",
		zap.Duration("duration", time.Since(startTime)),
		zap.Int("plugins", len(r.bootOrder)),
	)
	return m, nil
}

// Monitor returns the bootstrapped monitor, or nil.
func (r *Runtime) Monitor() *monitor.Monitor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.monitor
}

// Handler returns the HTTP API for the bootstrapped monitor.
func (r *Runtime) Handler(opts ...api.Option) (http.Handler, error) {
	m := r.Monitor()
	if m == nil {
		return nil, apperrors.NewClosed("runtime is not bootstrapped")
	}
	return api.NewRouter(m, r.logger.Named("http"), opts...), nil
}

// Shutdown closes the monitor, disposing plugins in reverse boot order.
func (r *Runtime) Shutdown(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultShutdownTimeout)
		defer cancel()
	}

	r.mu.Lock()
	m := r.monitor
	r.mu.Unlock()
	if m == nil {
		return nil
	}

	err := m.Close(ctx)
	if err != nil {
		r.logger.Error("shutdown finished with errors", zap.Error(err))
	}

	r.mu.Lock()
	for _, name := range r.bootOrder {
		r.states[name] = plugin.StateDisposed
	}
	r.mu.Unlock()

	r.logger.Info("shutdown completed")
	_ = r.logger.Sync()
	return err
}

// GetPluginState returns the last known state of a plugin by name.
func (r *Runtime) GetPluginState(name string) (plugin.State, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	state, ok := r.states[name]
	return state, ok
}

// PluginError returns the error that made an optional plugin skip.
func (r *Runtime) PluginError(name string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.errs[name]
}

// BootOrder returns the names of registered plugins in activation order.
func (r *Runtime) BootOrder() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string{}, r.bootOrder...)
}

func (r *Runtime) handlePluginError(name string, opts RegisterOptions, err error) error {
	r.errs[name] = err
	if opts.Optional {
		r.logger.Warn("optional plugin failed, continuing", zap.String("plugin", name), zap.Error(err))
		return nil
	}
	r.logger.Error("required plugin failed", zap.String("plugin", name), zap.Error(err))
	return err
}

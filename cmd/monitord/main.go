// Command monitord runs a monitor configured from files and exposes it over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-redis/redis/v8"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/leeforge/monitor/authz"
	"github.com/leeforge/monitor/config"
	"github.com/leeforge/monitor/http/api"
	"github.com/leeforge/monitor/logging"
	"github.com/leeforge/monitor/plugins/redisbridge"
	"github.com/leeforge/monitor/runtime"
	"github.com/leeforge/monitor/tracing"
)

type daemonConfig struct {
	HTTP struct {
		Addr string `mapstructure:"addr" default:":8080"`
	} `mapstructure:"http"`
	Redis   redisbridge.ClientConfig `mapstructure:"redis"`
	Tracing tracing.Config           `mapstructure:"tracing"`
	Bridge  struct {
		Enabled bool     `mapstructure:"enabled"`
		Inbound []string `mapstructure:"inbound"`
	} `mapstructure:"bridge"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "monitord:", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reloads := make(chan fsnotify.Event, 1)
	opts := config.DefaultOptions()
	opts.EnvPrefix = "MONITOR"
	opts.WatchAble = true
	opts.OnChange = func(e fsnotify.Event) {
		select {
		case reloads <- e:
		default:
		}
	}

	mc, cfg, err := config.LoadMonitorConfig(opts)
	if err != nil {
		return err
	}
	defer cfg.Close()

	var dc daemonConfig
	if err := cfg.BindWithDefaults(&dc); err != nil {
		return err
	}

	logger, level := logging.NewLeveledLogger(mc.Log)
	defer logging.CloseAllWriters()
	logger.Info("configuration loaded", zap.Strings("files", cfg.Files()), zap.String("mode", string(config.CurrentMode())))
	go applyReloads(ctx, cfg, reloads, level, logger)

	tp, err := tracing.NewProvider(dc.Tracing, nil)
	if err != nil {
		return err
	}
	defer tp.Shutdown(context.Background())

	rt := runtime.NewRuntime(runtime.Config{Monitor: mc, Logger: logger, Tracer: tp.Tracer()})

	var apiOpts []api.Option
	if _, ok := mc.Plugins["authz"]; ok {
		var ao authz.Options
		if err := mc.PluginSettings("authz").Bind(&ao); err != nil {
			return err
		}
		apiOpts = append(apiOpts, api.WithReservedMetadata(ao.SubjectKey))
		class, err := authz.Define()
		if err != nil {
			return err
		}
		if err := rt.Register(class); err != nil {
			return err
		}
	}

	var (
		bridge *redisbridge.Bridge
		client *redis.Client
	)
	if dc.Bridge.Enabled {
		client, err = redisbridge.NewClient(ctx, dc.Redis, logger.Named("redis"))
		if err != nil {
			return err
		}
		defer client.Close()

		bridge = redisbridge.New(client)
		class, err := bridge.Define(dc.Bridge.Inbound...)
		if err != nil {
			return err
		}
		if err := rt.Register(class, runtime.RegisterOptions{Optional: true}); err != nil {
			return err
		}
	}

	if _, err := rt.Bootstrap(ctx); err != nil {
		return err
	}

	if bridge != nil && len(dc.Bridge.Inbound) > 0 && rt.PluginError("redisbridge") == nil {
		go func() {
			if err := bridge.Listen(ctx, client); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("redis bridge stopped", zap.Error(err))
			}
		}()
	}

	handler, err := rt.Handler(apiOpts...)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              dc.HTTP.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http listening", zap.String("addr", dc.HTTP.Addr))
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	return rt.Shutdown(shutdownCtx)
}

// applyReloads re-applies the log level after each configuration reload.
// Plugin settings and strict-events only take effect on restart.
func applyReloads(ctx context.Context, cfg *config.Config, reloads <-chan fsnotify.Event, level zap.AtomicLevel, logger logging.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-reloads:
			next := logging.Config{Level: cast.ToString(cfg.Get("log.level"))}.TransportLevel()
			if next != level.Level() {
				level.SetLevel(next)
			}
			logger.Info("configuration reloaded",
				zap.String("file", e.Name),
				zap.String("op", e.Op.String()),
				zap.Stringer("level", next),
			)
		}
	}
}

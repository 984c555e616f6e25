package config

import (
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/leeforge/monitor/logging"
)

// Options controls where configuration is read from.
type Options struct {
	BasePath  string
	FileName  string
	FileType  string
	EnvPrefix string
	// Mode overrides MONITOR_ENV when set.
	Mode      Mode
	WatchAble bool
	OnChange  func(e fsnotify.Event)
}

// Config is a layered viper instance: base file, mode files, local
// overrides, then environment variables.
type Config struct {
	instance   *viper.Viper
	opts       Options
	paths      []string
	watcher    *fsnotify.Watcher
	watchOnce  sync.Once
	watchMutex sync.RWMutex
	bound      []any
}

// MonitorConfig is the file form of a monitor and its plugins.
type MonitorConfig struct {
	Log          logging.Config         `mapstructure:"log" yaml:"log"`
	StrictEvents bool                   `mapstructure:"strict-events" yaml:"strict-events" default:"true"`
	Plugins      map[string]PluginEntry `mapstructure:"plugins" yaml:"plugins"`
}

// PluginEntry is one plugin's block under plugins.
type PluginEntry struct {
	// Enabled defaults to true when omitted.
	Enabled  *bool          `mapstructure:"enabled" yaml:"enabled"`
	Settings map[string]any `mapstructure:"settings" yaml:"settings"`
}

func (e PluginEntry) IsEnabled() bool {
	return e.Enabled == nil || *e.Enabled
}

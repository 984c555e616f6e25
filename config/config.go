package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/creasty/defaults"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/leeforge/monitor/plugin"
)

func DefaultOptions() Options {
	basePath := os.Getenv("CONFIG_PATH")
	if basePath == "" {
		basePath = "config"
	}

	return Options{
		BasePath: basePath,
		FileName: "monitor",
		FileType: "yaml",
	}
}

func (o *Options) applyDefaults() {
	d := DefaultOptions()
	if o.BasePath == "" {
		o.BasePath = d.BasePath
	}
	if o.FileName == "" {
		o.FileName = d.FileName
	}
	if o.FileType == "" {
		o.FileType = d.FileType
	}
	if o.Mode == "" {
		o.Mode = CurrentMode()
	}
}

// New reads every configuration file that applies to the current mode.
func New(optsArr ...Options) (*Config, error) {
	var opts Options
	if len(optsArr) > 0 {
		opts = optsArr[0]
	}
	opts.applyDefaults()

	paths := configFilePaths(opts)
	if len(paths) == 0 {
		return nil, fmt.Errorf("no configuration files found in %s for %s.%s", opts.BasePath, opts.FileName, opts.FileType)
	}

	instance, err := load(opts, paths)
	if err != nil {
		return nil, err
	}

	return &Config{
		instance: instance,
		opts:     opts,
		paths:    paths,
	}, nil
}

// Bind unmarshals the configuration into target. With WatchAble set, target
// is re-bound whenever one of the files changes.
func (c *Config) Bind(target any) error {
	if c == nil || c.instance == nil {
		return errors.New("config instance is nil")
	}
	if target == nil {
		return errors.New("target instance is nil")
	}

	c.watchMutex.Lock()
	if err := c.instance.Unmarshal(target); err != nil {
		c.watchMutex.Unlock()
		return fmt.Errorf("failed to unmarshal config (path: %s, file: %s.%s): %w",
			c.opts.BasePath, c.opts.FileName, c.opts.FileType, err)
	}
	c.bound = append(c.bound, target)
	c.watchMutex.Unlock()

	if c.opts.WatchAble {
		var werr error
		c.watchOnce.Do(func() { werr = c.watch() })
		return werr
	}
	return nil
}

// BindWithDefaults applies `default:` tags before binding, so keys absent
// from every file keep their defaults.
func (c *Config) BindWithDefaults(target any) error {
	if err := defaults.Set(target); err != nil {
		return fmt.Errorf("failed to set defaults: %w", err)
	}
	return c.Bind(target)
}

func (c *Config) Get(key string) any {
	c.watchMutex.RLock()
	defer c.watchMutex.RUnlock()
	return c.instance.Get(key)
}

func (c *Config) Set(key string, value any) {
	c.watchMutex.Lock()
	defer c.watchMutex.Unlock()
	c.instance.Set(key, value)
}

// Files returns the files that were read, lowest priority first.
func (c *Config) Files() []string {
	out := make([]string, len(c.paths))
	copy(out, c.paths)
	return out
}

// Close stops watching.
func (c *Config) Close() error {
	if c.watcher == nil {
		return nil
	}
	return c.watcher.Close()
}

func (c *Config) watch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to start config watcher: %w", err)
	}
	if err := w.Add(c.opts.BasePath); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to watch %s: %w", c.opts.BasePath, err)
	}
	c.watcher = w

	go func() {
		for {
			select {
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
					continue
				}
				if !c.tracks(e.Name) {
					continue
				}
				if err := c.reload(); err != nil {
					continue
				}
				if c.opts.OnChange != nil {
					c.opts.OnChange(e)
				}
			case _, ok := <-w.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return nil
}

func (c *Config) tracks(name string) bool {
	base := filepath.Base(name)
	for _, candidate := range candidateNames(c.opts) {
		if base == candidate+"."+c.opts.FileType {
			return true
		}
	}
	return false
}

func (c *Config) reload() error {
	paths := configFilePaths(c.opts)
	instance, err := load(c.opts, paths)
	if err != nil {
		return err
	}

	c.watchMutex.Lock()
	defer c.watchMutex.Unlock()
	for _, target := range c.bound {
		if err := instance.Unmarshal(target); err != nil {
			return err
		}
	}
	c.instance = instance
	c.paths = paths
	return nil
}

func load(opts Options, paths []string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigType(opts.FileType)

	for _, path := range paths {
		layer := viper.New()
		layer.SetConfigFile(path)
		if err := layer.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
		if err := v.MergeConfigMap(layer.AllSettings()); err != nil {
			return nil, fmt.Errorf("error merging config file %s: %w", path, err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	if opts.EnvPrefix != "" {
		v.SetEnvPrefix(opts.EnvPrefix)
	}
	v.AutomaticEnv()
	applyEnvOverrides(v, opts.EnvPrefix)

	return v, nil
}

// applyEnvOverrides lets environment variables win over file values for
// keys that exist in some file: log.level -> LOG_LEVEL.
func applyEnvOverrides(v *viper.Viper, envPrefix string) {
	replacer := strings.NewReplacer(".", "_", "-", "_")

	for _, key := range v.AllKeys() {
		envKey := strings.ToUpper(replacer.Replace(key))
		if envPrefix != "" {
			envKey = strings.ToUpper(envPrefix) + "_" + envKey
		}
		if envValue, ok := os.LookupEnv(envKey); ok && envValue != "" {
			v.Set(key, envValue)
		}
	}
}

// candidateNames lists base names in merge order: base, base.local, then
// each mode suffix with its .local variant.
func candidateNames(opts Options) []string {
	names := []string{opts.FileName, opts.FileName + ".local"}
	for _, suffix := range opts.Mode.suffixes() {
		names = append(names,
			fmt.Sprintf("%s.%s", opts.FileName, suffix),
			fmt.Sprintf("%s.%s.local", opts.FileName, suffix),
		)
	}
	return names
}

func configFilePaths(opts Options) []string {
	var files []string
	for _, name := range candidateNames(opts) {
		file := filepath.Join(opts.BasePath, name+"."+opts.FileType)
		if info, err := os.Stat(file); err == nil && !info.IsDir() {
			files = append(files, file)
		}
	}
	return files
}

// LoadMonitorConfig reads and binds a MonitorConfig.
func LoadMonitorConfig(opts ...Options) (*MonitorConfig, *Config, error) {
	c, err := New(opts...)
	if err != nil {
		return nil, nil, err
	}
	mc := &MonitorConfig{}
	if err := c.BindWithDefaults(mc); err != nil {
		return nil, nil, err
	}
	return mc, c, nil
}

// PluginSettings returns the settings block for name. Missing plugins get
// an enabled, empty Settings.
func (mc *MonitorConfig) PluginSettings(name string) *plugin.Settings {
	entry, ok := mc.Plugins[strings.ToLower(name)]
	if !ok {
		return plugin.NewSettings(name, true, nil)
	}
	return plugin.NewSettings(name, entry.IsEnabled(), entry.Settings)
}

// StrictEventsOption returns StrictEvents in the pointer form expected by
// monitor options.
func (mc *MonitorConfig) StrictEventsOption() *bool {
	strict := mc.StrictEvents
	return &strict
}

package plugin

import (
	"maps"
	"time"

	"github.com/spf13/cast"

	"github.com/leeforge/monitor/json"
)

// Settings is a plugin's scoped slice of file configuration.
type Settings struct {
	name    string
	enabled bool
	values  map[string]any
}

// NewSettings creates a settings entry.
func NewSettings(name string, enabled bool, values map[string]any) *Settings {
	if values == nil {
		values = make(map[string]any)
	}
	return &Settings{name: name, enabled: enabled, values: values}
}

// MapSettings creates an always-enabled, unnamed Settings. Used for inline
// configuration and tests.
func MapSettings(values map[string]any) *Settings {
	return NewSettings("", true, values)
}

func (s *Settings) Name() string {
	if s == nil {
		return ""
	}
	return s.name
}

func (s *Settings) IsEnabled() bool {
	return s != nil && s.enabled
}

func (s *Settings) Get(key string) (any, bool) {
	if s == nil {
		return nil, false
	}
	v, ok := s.values[key]
	return v, ok
}

func (s *Settings) String(key, defaultVal string) string {
	v, ok := s.Get(key)
	if !ok {
		return defaultVal
	}
	str, err := cast.ToStringE(v)
	if err != nil {
		return defaultVal
	}
	return str
}

// Int accepts ints, floats and numeric strings, as produced by yaml, json
// and environment overrides respectively.
func (s *Settings) Int(key string, defaultVal int) int {
	v, ok := s.Get(key)
	if !ok {
		return defaultVal
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return defaultVal
	}
	return n
}

func (s *Settings) Bool(key string, defaultVal bool) bool {
	v, ok := s.Get(key)
	if !ok {
		return defaultVal
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func (s *Settings) Duration(key string, defaultVal time.Duration) time.Duration {
	v, ok := s.Get(key)
	if !ok {
		return defaultVal
	}
	d, err := cast.ToDurationE(v)
	if err != nil {
		return defaultVal
	}
	return d
}

// Empty reports whether no values were configured.
func (s *Settings) Empty() bool {
	return s == nil || len(s.values) == 0
}

// Values returns a copy of the raw settings map.
func (s *Settings) Values() map[string]any {
	if s == nil {
		return map[string]any{}
	}
	return maps.Clone(s.values)
}

// Bind decodes the settings into target, applying `default:` tags first.
func (s *Settings) Bind(target any) error {
	data, err := json.Marshal(s.Values())
	if err != nil {
		return err
	}
	return json.Unmarshal(data, target)
}

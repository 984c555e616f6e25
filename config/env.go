package config

import (
	"os"
	"strings"
)

// ModeKey is the environment variable selecting the configuration mode.
const ModeKey = "MONITOR_ENV"

// Mode selects which environment-specific files are layered over the base file.
type Mode string

const (
	DevMode  Mode = "development"
	ProMode  Mode = "production"
	TestMode Mode = "test"
)

// ParseMode normalises a mode name. Unknown values fall back to DevMode.
func ParseMode(s string) Mode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "production", "prod", "pro":
		return ProMode
	case "test", "testing":
		return TestMode
	default:
		return DevMode
	}
}

// CurrentMode reads the mode from MONITOR_ENV.
func CurrentMode() Mode {
	return ParseMode(os.Getenv(ModeKey))
}

// suffixes lists the file-name suffixes read for a mode, lowest priority first.
func (m Mode) suffixes() []string {
	switch m {
	case ProMode:
		return []string{"pro", "prod", "production"}
	case TestMode:
		return []string{"test"}
	default:
		return []string{"dev", "development"}
	}
}

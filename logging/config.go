package logging

import (
	"strings"

	"go.uber.org/zap/zapcore"
)

// Config represents the logger configuration.
type Config struct {
	// Director is the directory where per-level log files are written.
	Director string `mapstructure:"director" json:"director" yaml:"director" default:"logs"`

	// Level is the minimum log level (debug, info, warn, error, dpanic, panic, fatal).
	Level string `mapstructure:"level" json:"level" yaml:"level" default:"info"`

	// Format is the log format (json or console).
	Format string `mapstructure:"format" json:"format" yaml:"format" default:"json"`

	// Prefix is prepended to every encoded timestamp.
	Prefix string `mapstructure:"prefix" json:"prefix" yaml:"prefix"`

	// TimeFormat is the time format string (uses Go time format).
	TimeFormat string `mapstructure:"time-format" json:"timeFormat" yaml:"time-format" default:"2006/01/02 - 15:04:05"`

	// LogInTerminal writes entries to stdout.
	LogInTerminal bool `mapstructure:"log-in-terminal" json:"logInTerminal" yaml:"log-in-terminal"`

	// LogToFile writes entries to rotated files under Director.
	LogToFile bool `mapstructure:"log-to-file" json:"logToFile" yaml:"log-to-file"`

	// MaxAge is the maximum number of days to retain old log files.
	MaxAge int `mapstructure:"max-age" json:"maxAge" yaml:"max-age" default:"7"`

	// MaxSize is the maximum size in megabytes of the log file before it gets rotated.
	MaxSize int `mapstructure:"max-size" json:"maxSize" yaml:"max-size" default:"100"`

	// MaxBackups is the maximum number of old log files to retain.
	MaxBackups int `mapstructure:"max-backups" json:"maxBackups" yaml:"max-backups" default:"10"`

	// Compress gzips rotated files.
	Compress bool `mapstructure:"compress" json:"compress" yaml:"compress"`

	// ShowLineNumber enables adding caller information to log entries.
	ShowLineNumber bool `mapstructure:"show-line-number" json:"showLineNumber" yaml:"show-line-number"`
}

// DefaultConfig returns a terminal-only Config.
func DefaultConfig() Config {
	return Config{
		Director:       "logs",
		Level:          "info",
		Format:         "json",
		TimeFormat:     "2006/01/02 - 15:04:05",
		LogInTerminal:  true,
		LogToFile:      false,
		MaxAge:         7,
		MaxSize:        100,
		MaxBackups:     10,
		Compress:       true,
		ShowLineNumber: true,
	}
}

// TransportLevel converts the string level to zapcore.Level.
func (c Config) TransportLevel() zapcore.Level {
	switch strings.ToLower(c.Level) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "dpanic":
		return zapcore.DPanicLevel
	case "panic":
		return zapcore.PanicLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// applyDefaults fills empty fields from DefaultConfig.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()

	if c.Director == "" {
		c.Director = defaults.Director
	}
	if c.Format == "" {
		c.Format = defaults.Format
	}
	if c.TimeFormat == "" {
		c.TimeFormat = defaults.TimeFormat
	}
	if c.MaxAge == 0 {
		c.MaxAge = defaults.MaxAge
	}
	if c.MaxSize == 0 {
		c.MaxSize = defaults.MaxSize
	}
	if c.MaxBackups == 0 {
		c.MaxBackups = defaults.MaxBackups
	}
}

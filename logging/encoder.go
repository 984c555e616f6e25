package logging

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// CusTimeEncoder creates a time encoder that adds the prefix and formats the time.
func CusTimeEncoder(config Config) zapcore.TimeEncoder {
	return func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(config.Prefix + t.Format(config.TimeFormat))
	}
}

// GetEncoder returns a zapcore.Encoder based on the config format.
func GetEncoder(config Config) zapcore.Encoder {
	encoderConfig := zapcore.EncoderConfig{
		MessageKey:     "message",
		LevelKey:       "level",
		TimeKey:        "time",
		NameKey:        "logger",
		CallerKey:      "caller",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     CusTimeEncoder(config),
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	}
	if config.Format == "json" {
		return zapcore.NewJSONEncoder(encoderConfig)
	}
	return zapcore.NewConsoleEncoder(encoderConfig)
}

// getZapCores creates one core per level from min up, so each level can
// go to its own file. enabled gates every core on top of the exact match.
func getZapCores(config Config, min zapcore.Level, enabled zapcore.LevelEnabler) []zapcore.Core {
	encoder := GetEncoder(config)
	cores := make([]zapcore.Core, 0, 7)
	for level := min; level <= zapcore.FatalLevel; level++ {
		writer := getWriteSyncer(config, level.String())
		if writer == nil {
			continue
		}
		cores = append(cores, zapcore.NewCore(encoder, writer, exactLevel(level, enabled)))
	}
	return cores
}

func exactLevel(level zapcore.Level, enabled zapcore.LevelEnabler) zap.LevelEnablerFunc {
	return func(l zapcore.Level) bool {
		return l == level && enabled.Enabled(l)
	}
}

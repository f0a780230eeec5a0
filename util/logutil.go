package util

import (
	"log/slog"
	"os"
	"strings"
)

// InitSlog configures slog based on LOG_LEVEL and LOG_FORMAT environment variables.
// Supported levels: debug, info, warn, error
// Supported formats: text (default), json
func InitSlog() {
	logLevel, hasLevel := os.LookupEnv("LOG_LEVEL")
	logFormat, hasFormat := os.LookupEnv("LOG_FORMAT")
	if !hasLevel && !hasFormat {
		return
	}

	opts := &slog.HandlerOptions{
		Level: ParseLogLevel(logLevel),
	}

	var handler slog.Handler
	if strings.ToLower(logFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// ParseLogLevel maps a LOG_LEVEL value to a slog level, defaulting to info.
func ParseLogLevel(logLevel string) slog.Level {
	switch strings.ToLower(logLevel) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

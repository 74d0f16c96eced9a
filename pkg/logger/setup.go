package logger

import (
	"strings"
)

// SetupLogger installs the process-wide logger and returns it.
// Unknown levels fall back to info.
func SetupLogger(logLevel string, logJSON, logSource bool) Logger {
	level := LogLevel(strings.ToLower(strings.TrimSpace(logLevel)))
	switch level {
	case DebugLevel, InfoLevel, WarnLevel, ErrorLevel, DisabledLevel:
	default:
		level = InfoLevel
	}
	cfg := DefaultConfig()
	cfg.Level = level
	cfg.JSON = logJSON
	cfg.AddSource = logSource
	Init(cfg)
	return GetDefault()
}

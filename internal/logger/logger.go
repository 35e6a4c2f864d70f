package logger

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Logger is the structured logging contract shared by every component.
// The first argument names the emitting component so log lines can be
// filtered per stage.
type Logger interface {
	Debug(component, message string, fields map[string]interface{})
	Info(component, message string, fields map[string]interface{})
	Warning(component, message string, fields map[string]interface{})
	Error(component string, err error, fields map[string]interface{})
}

// ParseLevel maps a textual level onto a zerolog level. Unknown values
// fall back to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// LevelFromEnv determines the log level from LOG_LEVEL, with DEBUG=1
// forcing debug output when LOG_LEVEL is unset.
func LevelFromEnv() zerolog.Level {
	if value := os.Getenv("LOG_LEVEL"); value != "" {
		return ParseLevel(value)
	}
	if os.Getenv("DEBUG") == "1" {
		return zerolog.DebugLevel
	}
	return zerolog.InfoLevel
}

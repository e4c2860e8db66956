package logger

import (
	"strings"

	"github.com/rs/zerolog"
)

// Logger provides structured logging tagged with the emitting component.
type Logger interface {
	Info(component, message string, fields map[string]interface{})
	Error(component string, err error, fields map[string]interface{})
	Warning(component, message string, fields map[string]interface{})
	Debug(component, message string, fields map[string]interface{})
}

// ParseLevel maps a config or environment level name to a zerolog level.
// Unknown names fall back to info.
func ParseLevel(name string) zerolog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return zerolog.DebugLevel
	case "info", "":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

type nopLogger struct{}

// Nop returns a Logger that discards everything.
func Nop() Logger {
	return nopLogger{}
}

func (nopLogger) Info(string, string, map[string]interface{})    {}
func (nopLogger) Error(string, error, map[string]interface{})     {}
func (nopLogger) Warning(string, string, map[string]interface{}) {}
func (nopLogger) Debug(string, string, map[string]interface{})   {}

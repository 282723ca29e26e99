package utils

import (
	"io"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

// ServiceName is stamped on every log line.
const ServiceName = "auction-engine"

var base = log.NewEntry(log.StandardLogger())

func init() {
	ConfigureLogger("info", "json", os.Stdout)
}

// ConfigureLogger sets level, format ("json" or "text") and output of the
// global logger. An unknown level keeps the current one.
func ConfigureLogger(level, format string, out io.Writer) {
	std := log.StandardLogger()

	switch strings.ToLower(format) {
	case "text":
		std.SetFormatter(&log.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02T15:04:05Z07:00"})
	default:
		std.SetFormatter(&log.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05Z07:00"})
	}
	if out != nil {
		std.SetOutput(out)
	}
	SetLevel(level)

	base = log.NewEntry(std).WithField("service", ServiceName)
}

// SetLevel changes the global log level. Unknown names keep the current level.
func SetLevel(name string) {
	if lvl, err := log.ParseLevel(name); err == nil {
		log.SetLevel(lvl)
	}
}

// Logger exposes the global logger for libraries that accept a Printf-style writer
func Logger() *log.Logger {
	return log.StandardLogger()
}

// ErrFields returns fields with "error" set. fields may be nil.
func ErrFields(err error, fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	if err != nil {
		out["error"] = err.Error()
	}
	return out
}

func entry(fields map[string]any) *log.Entry {
	return base.WithFields(log.Fields(fields))
}

// Debug logs a message at debug level with optional fields
func Debug(message string, fields map[string]any) { entry(fields).Debug(message) }

// Info logs a message at info level with optional fields
func Info(message string, fields map[string]any) { entry(fields).Info(message) }

// Warn logs a message at warning level with optional fields
func Warn(message string, fields map[string]any) { entry(fields).Warn(message) }

// Error logs a message at error level with optional fields
func Error(message string, fields map[string]any) { entry(fields).Error(message) }

// Fatal logs and exits the process.
func Fatal(message string, fields map[string]any) { entry(fields).Fatal(message) }

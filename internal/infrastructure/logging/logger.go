package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/nerrad567/prodev-core/internal/infrastructure/config"
)

// serviceName is attached to every log entry.
const serviceName = "prodev"

// redacted replaces the value of any attribute named in secretKeys.
const redacted = "[REDACTED]"

// secretKeys are attribute keys whose values never reach the output.
// Matching is case-insensitive on the last path segment of grouped keys.
var secretKeys = map[string]struct{}{
	"password": {},
	"token":    {},
	"dsn":      {},
}

// Logger is a slog.Logger whose level can be changed after construction.
// All methods are safe for concurrent use.
type Logger struct {
	*slog.Logger
	level *slog.LevelVar
}

// New creates a Logger writing to cfg.Output ("stdout" or "stderr").
// CLI commands that print rows on stdout should log to stderr.
func New(cfg config.LoggingConfig, version string) *Logger {
	out := io.Writer(os.Stdout)
	if strings.EqualFold(cfg.Output, "stderr") {
		out = os.Stderr
	}
	return NewWithWriter(cfg, version, out)
}

// NewWithWriter creates a Logger writing to w, ignoring cfg.Output.
func NewWithWriter(cfg config.LoggingConfig, version string, w io.Writer) *Logger {
	level := new(slog.LevelVar)
	level.Set(parseLevel(cfg.Level))

	opts := &slog.HandlerOptions{Level: level, ReplaceAttr: redact}
	var h slog.Handler = slog.NewJSONHandler(w, opts)
	if strings.EqualFold(cfg.Format, "text") {
		h = slog.NewTextHandler(w, opts)
	}

	base := slog.New(h).With("service", serviceName, "version", version)
	return &Logger{Logger: base, level: level}
}

// Discard returns a Logger that drops everything.
func Discard() *Logger {
	return &Logger{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		level:  new(slog.LevelVar),
	}
}

// Default creates a logger for use before configuration is loaded.
// It writes JSON at info level to stderr.
func Default() *Logger {
	return New(config.LoggingConfig{Level: "info", Format: "json", Output: "stderr"}, "dev")
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func redact(_ []string, a slog.Attr) slog.Attr {
	if _, secret := secretKeys[strings.ToLower(a.Key)]; secret {
		return slog.String(a.Key, redacted)
	}
	return a
}

// SetLevel changes the minimum level of l and of every Logger derived from
// it with With or Component. Unknown names select info.
func (l *Logger) SetLevel(level string) {
	l.level.Set(parseLevel(level))
}

// Level returns the current minimum level.
func (l *Logger) Level() slog.Level {
	return l.level.Level()
}

// With returns a Logger with additional attributes that shares l's level.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...), level: l.level}
}

// Component tags every entry with component=name.
//
//	access := log.Component("dbaccess")
//	access.Info("cache cleared") // component=dbaccess
func (l *Logger) Component(name string) *Logger {
	return l.With("component", name)
}

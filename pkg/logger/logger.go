// Package logger builds the process-wide slog logger and provides the
// attribute helpers used across the attendance services.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Format selects the handler encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Options configures New.
type Options struct {
	Level  slog.Level
	Format Format
	Output io.Writer
	// AddSource includes file:line of the call site.
	AddSource bool
}

// DefaultOptions returns text output at info level on stdout.
func DefaultOptions() Options {
	return Options{
		Level:  slog.LevelInfo,
		Format: FormatText,
		Output: os.Stdout,
	}
}

// ForEnvironment returns JSON output in production and text elsewhere.
func ForEnvironment(env string, debug bool) Options {
	opts := DefaultOptions()
	if env == "production" {
		opts.Format = FormatJSON
	}
	if debug {
		opts.Level = slog.LevelDebug
	}
	return opts
}

// New creates a logger.
func New(opts Options) *slog.Logger {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	hopts := &slog.HandlerOptions{Level: opts.Level, AddSource: opts.AddSource}

	var handler slog.Handler
	if opts.Format == FormatJSON {
		handler = slog.NewJSONHandler(opts.Output, hopts)
	} else {
		handler = slog.NewTextHandler(opts.Output, hopts)
	}
	return slog.New(handler)
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// ParseLevel parses a level name, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type contextKey struct{}

// WithContext stores a logger in the context.
func WithContext(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, l)
}

// FromContext returns the stored logger, or slog.Default.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(contextKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}

// Err returns an "error" attribute; a nil error yields an empty attribute.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String("error", err.Error())
}

func Component(name string) slog.Attr   { return slog.String("component", name) }
func MemberID(id string) slog.Attr      { return slog.String("member_id", id) }
func Date(key string) slog.Attr         { return slog.String("date", key) }
func RequestID(id string) slog.Attr     { return slog.String("request_id", id) }
func Latency(d time.Duration) slog.Attr { return slog.Duration("latency", d) }

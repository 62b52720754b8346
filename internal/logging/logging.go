// Package logging provides the simulator's structured logger, a thin
// interface over log/slog with optional size-rotated file output.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Field is one structured attribute.
type Field = slog.Attr

func String(key, value string) Field          { return slog.String(key, value) }
func Int(key string, value int) Field         { return slog.Int(key, value) }
func Float64(key string, value float64) Field { return slog.Float64(key, value) }
func Duration(key string, d time.Duration) Field {
	return slog.Duration(key, d)
}
func Any(key string, value any) Field { return slog.Any(key, value) }

// Err records err's message under "error".
func Err(err error) Field {
	if err == nil {
		return slog.Any("error", nil)
	}
	return slog.String("error", err.Error())
}

// Logger is what the simulator's packages log through.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...Field)
	Info(ctx context.Context, msg string, fields ...Field)
	Warn(ctx context.Context, msg string, fields ...Field)
	Error(ctx context.Context, msg string, fields ...Field)
	With(fields ...Field) Logger
}

// Config selects level, encoding and destination.
type Config struct {
	Level  string // debug, info, warn, error
	Format string // json or text
	// Component is attached to every record when set.
	Component string
	// File sends output to a rotated log file (64 MB, 3 backups, 14 days,
	// gzip) instead of stdout.
	File string
	// Output overrides the destination entirely.
	Output io.Writer
}

// New builds a slog-backed Logger.
func New(cfg Config) Logger {
	out := cfg.Output
	switch {
	case out != nil:
	case cfg.File != "":
		out = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    64,
			MaxBackups: 3,
			MaxAge:     14,
			Compress:   true,
		}
	default:
		out = os.Stdout
	}

	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	var h slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		h = slog.NewJSONHandler(out, opts)
	} else {
		h = slog.NewTextHandler(out, opts)
	}
	if cfg.Component != "" {
		h = h.WithAttrs([]slog.Attr{slog.String("component", cfg.Component)})
	}
	return slogger{h: h}
}

// NewFromEnv reads LOG_LEVEL, LOG_FORMAT and LOG_FILE; unset values give
// info-level text on stdout.
func NewFromEnv(component string) Logger {
	return New(Config{
		Level:     os.Getenv("LOG_LEVEL"),
		Format:    os.Getenv("LOG_FORMAT"),
		File:      os.Getenv("LOG_FILE"),
		Component: component,
	})
}

// Noop discards everything.
func Noop() Logger { return noopLogger{} }

type slogger struct {
	h slog.Handler
}

func (s slogger) With(fields ...Field) Logger {
	if len(fields) == 0 {
		return s
	}
	return slogger{h: s.h.WithAttrs(fields)}
}

func (s slogger) Debug(ctx context.Context, msg string, fields ...Field) {
	s.log(ctx, slog.LevelDebug, msg, fields)
}

func (s slogger) Info(ctx context.Context, msg string, fields ...Field) {
	s.log(ctx, slog.LevelInfo, msg, fields)
}

func (s slogger) Warn(ctx context.Context, msg string, fields ...Field) {
	s.log(ctx, slog.LevelWarn, msg, fields)
}

func (s slogger) Error(ctx context.Context, msg string, fields ...Field) {
	s.log(ctx, slog.LevelError, msg, fields)
}

func (s slogger) log(ctx context.Context, level slog.Level, msg string, fields []Field) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !s.h.Enabled(ctx, level) {
		return
	}
	rec := slog.NewRecord(time.Now(), level, msg, 0)
	rec.AddAttrs(fields...)
	_ = s.h.Handle(ctx, rec)
}

type noopLogger struct{}

func (noopLogger) With(...Field) Logger                    { return noopLogger{} }
func (noopLogger) Debug(context.Context, string, ...Field) {}
func (noopLogger) Info(context.Context, string, ...Field)  {}
func (noopLogger) Warn(context.Context, string, ...Field)  {}
func (noopLogger) Error(context.Context, string, ...Field) {}

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

type requestKey struct{}

type requestScope struct {
	id  string
	log Logger
}

// Request scopes ctx to one request: id (a fresh UUID when empty) and a
// logger derived from base carrying request_id plus fields.
func Request(ctx context.Context, base Logger, id string, fields ...Field) (context.Context, Logger) {
	if base == nil {
		base = Noop()
	}
	if id == "" {
		id = uuid.NewString()
	}
	l := base.With(append([]Field{String("request_id", id)}, fields...)...)
	return context.WithValue(ctx, requestKey{}, requestScope{id: id, log: l}), l
}

// RequestID is the ID set by Request, or "".
func RequestID(ctx context.Context) string {
	sc, _ := ctx.Value(requestKey{}).(requestScope)
	return sc.id
}

// FromContext returns the request logger set by Request, or fallback.
func FromContext(ctx context.Context, fallback Logger) Logger {
	if sc, ok := ctx.Value(requestKey{}).(requestScope); ok && sc.log != nil {
		return sc.log
	}
	if fallback == nil {
		return Noop()
	}
	return fallback
}

// Package logger provides a context-aware structured logger built on log/slog.
package logger

import (
	"context"
	"io"
	"log/slog"
	"runtime"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Level is the minimum severity a Logger emits.
type Level = slog.Level

const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// ParseLevel maps a config string to a Level. Unknown values fall back to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// LoggerInterface is the logging contract used across the application.
// The *c variants take an extra caller skip so helpers can attribute the
// record to their own caller.
type LoggerInterface interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)
	Debugc(ctx context.Context, caller int, msg string, args ...any)
	Infoc(ctx context.Context, caller int, msg string, args ...any)
	Warnc(ctx context.Context, caller int, msg string, args ...any)
	Errorc(ctx context.Context, caller int, msg string, args ...any)
}

// Events lets callers observe records of a given level, e.g. to mirror
// errors into the TUI. Nil entries are ignored.
type Events struct {
	Debug func(ctx context.Context, r slog.Record)
	Info  func(ctx context.Context, r slog.Record)
	Warn  func(ctx context.Context, r slog.Record)
	Error func(ctx context.Context, r slog.Record)
}

// Logger implements LoggerInterface.
type Logger struct {
	handler slog.Handler
	events  *Events
}

var _ LoggerInterface = (*Logger)(nil)

// New creates a JSON logger writing to w. serviceName is attached to every
// record; events may be nil.
func New(w io.Writer, minLevel Level, serviceName string, events *Events) *Logger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		AddSource: true,
		Level:     minLevel,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.SourceKey {
				if src, ok := a.Value.Any().(*slog.Source); ok {
					a.Value = slog.StringValue(shortFile(src.File) + ":" + strconv.Itoa(src.Line))
				}
			}
			return a
		},
	})

	return &Logger{
		handler: h.WithAttrs([]slog.Attr{slog.String("service", serviceName)}),
		events:  events,
	}
}

// NewDiscard returns a logger that drops everything.
func NewDiscard() *Logger {
	return New(io.Discard, LevelError+4, "", nil)
}

// With returns a logger carrying the given attributes on every record.
func (l *Logger) With(args ...any) *Logger {
	r := slog.NewRecord(time.Time{}, 0, "", 0)
	r.Add(args...)

	attrs := make([]slog.Attr, 0, r.NumAttrs())
	r.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, a)
		return true
	})

	return &Logger{handler: l.handler.WithAttrs(attrs), events: l.events}
}

func (l *Logger) Debug(ctx context.Context, msg string, args ...any) {
	l.write(ctx, LevelDebug, 3, msg, args...)
}

func (l *Logger) Info(ctx context.Context, msg string, args ...any) {
	l.write(ctx, LevelInfo, 3, msg, args...)
}

func (l *Logger) Warn(ctx context.Context, msg string, args ...any) {
	l.write(ctx, LevelWarn, 3, msg, args...)
}

func (l *Logger) Error(ctx context.Context, msg string, args ...any) {
	l.write(ctx, LevelError, 3, msg, args...)
}

func (l *Logger) Debugc(ctx context.Context, caller int, msg string, args ...any) {
	l.write(ctx, LevelDebug, caller+3, msg, args...)
}

func (l *Logger) Infoc(ctx context.Context, caller int, msg string, args ...any) {
	l.write(ctx, LevelInfo, caller+3, msg, args...)
}

func (l *Logger) Warnc(ctx context.Context, caller int, msg string, args ...any) {
	l.write(ctx, LevelWarn, caller+3, msg, args...)
}

func (l *Logger) Errorc(ctx context.Context, caller int, msg string, args ...any) {
	l.write(ctx, LevelError, caller+3, msg, args...)
}

func (l *Logger) write(ctx context.Context, level Level, caller int, msg string, args ...any) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !l.handler.Enabled(ctx, level) {
		return
	}

	var pcs [1]uintptr
	runtime.Callers(caller, pcs[:])

	r := slog.NewRecord(time.Now(), level, msg, pcs[0])
	r.Add(args...)

	// Correlate with the active span, if any.
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		r.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}

	_ = l.handler.Handle(ctx, r)

	l.emit(ctx, level, r)
}

func (l *Logger) emit(ctx context.Context, level Level, r slog.Record) {
	if l.events == nil {
		return
	}

	var fn func(context.Context, slog.Record)
	switch level {
	case LevelDebug:
		fn = l.events.Debug
	case LevelInfo:
		fn = l.events.Info
	case LevelWarn:
		fn = l.events.Warn
	case LevelError:
		fn = l.events.Error
	}

	if fn != nil {
		fn(ctx, r)
	}
}

func shortFile(path string) string {
	idx := strings.LastIndexByte(path, '/')
	if idx < 0 {
		return path
	}
	idx = strings.LastIndexByte(path[:idx], '/')
	if idx < 0 {
		return path
	}
	return path[idx+1:]
}

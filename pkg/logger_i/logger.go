package logger_i

import (
	"context"
	"io"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/akolanti/GoAnalyze/internal/config"
)

type Logger struct {
	inner *slog.Logger
}

// Init installs the process-wide handler: JSON in prod, text otherwise.
func Init(isProd bool, level slog.Level) {
	initTo(os.Stdout, isProd, level)
}

func initTo(w io.Writer, isProd bool, level slog.Level) {
	options := &slog.HandlerOptions{
		Level:     level,
		AddSource: isProd,
	}

	var handler slog.Handler
	if isProd {
		handler = slog.NewJSONHandler(w, options)
	} else {
		handler = slog.NewTextHandler(w, options)
	}
	slog.SetDefault(slog.New(handler))
}

func NewLogger(section string) *Logger {
	return &Logger{
		inner: slog.Default().With("component", section),
	}
}

func (l *Logger) Info(msg string, args ...any) {
	l.logWithSource(slog.LevelInfo, msg, args...)
}

func (l *Logger) Error(msg string, args ...any) {
	l.logWithSource(slog.LevelError, msg, args...)
}

func (l *Logger) Warn(msg string, args ...any) {
	l.logWithSource(slog.LevelWarn, msg, args...)
}

func (l *Logger) Debug(msg string, args ...any) {
	l.logWithSource(slog.LevelDebug, msg, args...)
}

func (l *Logger) logWithSource(level slog.Level, msg string, args ...any) {
	ctx := context.Background()
	if !l.inner.Enabled(ctx, level) {
		return
	}
	var pcs [1]uintptr
	// Skip 3 levels: runtime.Callers, logWithSource, and the Info/Error/... wrapper
	runtime.Callers(3, pcs[:])
	record := slog.NewRecord(time.Now(), level, msg, pcs[0])
	record.Add(args...)
	_ = l.inner.Handler().Handle(ctx, record)
}

func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		inner: l.inner.With(args...),
	}
}

// FromContext tags the logger with the trace and user ids carried on ctx, when present.
func (l *Logger) FromContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}
	out := l
	if trace, ok := ctx.Value(config.TRACE_ID_KEY).(string); ok && trace != "" {
		out = out.With("traceId", trace)
	}
	if user, ok := ctx.Value(config.USER_ID_KEY).(string); ok && user != "" {
		out = out.With("userId", user)
	}
	return out
}

// TraceId returns the trace id stored on ctx or an empty string.
func TraceId(ctx context.Context) string {
	trace, _ := ctx.Value(config.TRACE_ID_KEY).(string)
	return trace
}

// Package logger configures the process-wide slog handler and carries the
// current run id through contexts.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
)

type contextKey struct{}

// Setup installs a JSON or text handler writing to stdout.
func Setup(level string, format string) {
	SetupWriter(os.Stdout, level, format)
}

// SetupWriter is Setup with an explicit destination.
func SetupWriter(w io.Writer, level string, format string) {
	var handler slog.Handler
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}
	switch format {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func WithRun(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, contextKey{}, runID)
}

func RunID(ctx context.Context) string {
	runID, _ := ctx.Value(contextKey{}).(string)
	return runID
}

func FromContext(ctx context.Context) *slog.Logger {
	logger := slog.Default()
	if runID := RunID(ctx); runID != "" {
		logger = logger.With("run_id", runID)
	}
	return logger
}

// ForRun adds the run id carried by ctx to l. Struct loggers already name
// their component, so call sites use this instead of FromContext.
func ForRun(ctx context.Context, l *slog.Logger) *slog.Logger {
	if runID := RunID(ctx); runID != "" {
		return l.With("run_id", runID)
	}
	return l
}

func WithComponent(component string) *slog.Logger {
	return slog.Default().With("component", component)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

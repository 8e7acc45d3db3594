package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/jrzesz33/serverless_kafka/internal/models"
)

// GetLogLevel returns the log level based on the LOG_LEVEL environment variable.
// If LOG_LEVEL is not set or invalid, it defaults to Info level.
//
// Supported values (case-insensitive):
//   - DEBUG: slog.LevelDebug
//   - INFO: slog.LevelInfo
//   - WARN or WARNING: slog.LevelWarn
//   - ERROR: slog.LevelError
func GetLogLevel() slog.Level {
	levelStr := strings.ToUpper(strings.TrimSpace(os.Getenv("LOG_LEVEL")))

	switch levelStr {
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

// New creates a JSON logger writing to w at the level selected by LOG_LEVEL.
// CloudWatch ingests stdout, so the Lambda entry points pass os.Stdout.
func New(w io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: GetLogLevel(),
	}))
}

// ForEvent returns a child logger carrying the correlation identifiers of a lifecycle event
func ForEvent(logger *slog.Logger, event *models.LifecycleEvent) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}

	return logger.With(
		slog.String("request_id", event.RequestID),
		slog.String("request_type", string(event.RequestType)),
		slog.String("logical_resource_id", event.LogicalResourceID),
		slog.String("stack_id", event.StackID),
		slog.String("resource_type", event.ResourceType),
	)
}

package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Init configures the global slog logger.
// In production (ENVIRONMENT=production) it uses JSON output for log aggregation.
// Otherwise it uses the human-readable text handler.
func Init() {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))

	var handler slog.Handler
	if env == "production" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
	}

	slog.SetDefault(slog.New(handler))
}

// WithDispatch returns a logger with dispatch context fields attached.
// Use this for all logging within a single dispatch.
func WithDispatch(correlationID, model string) *slog.Logger {
	return slog.With(
		"correlation_id", correlationID,
		"model", model,
	)
}

// WithTransport scopes a dispatch logger to one transport attempt.
func WithTransport(logger *slog.Logger, transport string) *slog.Logger {
	return logger.With("transport", transport)
}

// Package logger wraps slog with the structured fields this service
// logs everywhere: request IDs, import batch IDs, and a few
// domain-specific event helpers.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

type contextKey string

const (
	// RequestIDKey carries the per-request ID through context.
	RequestIDKey contextKey = "request_id"
	// BatchIDKey carries the import batch ID through context.
	BatchIDKey contextKey = "batch_id"
)

// Logger embeds slog.Logger so the standard leveled methods stay
// available alongside the domain helpers.
type Logger struct {
	*slog.Logger
}

// New returns a text logger at debug level in development and a JSON
// logger at info level everywhere else.
func New(env string) *Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if strings.EqualFold(env, "development") {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithContext copies the request_id and batch_id context values, when
// present, onto the logger.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}

	newLogger := l

	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		newLogger = newLogger.WithRequestID(requestID)
	}

	if batchID, ok := ctx.Value(BatchIDKey).(string); ok && batchID != "" {
		newLogger = &Logger{
			Logger: newLogger.With(slog.String("batch_id", batchID)),
		}
	}

	return newLogger
}

// WithRequestID tags every subsequent log line with the request ID.
func (l *Logger) WithRequestID(requestID string) *Logger {
	return &Logger{
		Logger: l.With(slog.String("request_id", requestID)),
	}
}

// HTTPRequest logs one served request.
func (l *Logger) HTTPRequest(method, path string, status int, latencyMs float64, clientIP string) {
	l.Info("http_request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Float64("latency_ms", latencyMs),
		slog.String("client_ip", clientIP),
	)
}

// DatabaseError logs a failed database operation.
func (l *Logger) DatabaseError(operation string, err error) {
	l.Error("database_error",
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}

// RateLimitExceeded logs a request rejected by the rate limiter.
func (l *Logger) RateLimitExceeded(clientIP, path string) {
	l.Warn("rate_limit_exceeded",
		slog.String("client_ip", clientIP),
		slog.String("path", path),
	)
}

// ImportRowError logs a row-level import failure. Row failures are expected
// and never fatal to a batch, so they log at Warn.
func (l *Logger) ImportRowError(kind string, row int, reason string) {
	l.Warn("import_row_error",
		slog.String("kind", kind),
		slog.Int("row", row),
		slog.String("reason", reason),
	)
}

// CarrierEvent logs an inbound carrier webhook event.
func (l *Logger) CarrierEvent(trackingNumber, code string, duplicate bool) {
	l.Info("carrier_event",
		slog.String("tracking_number", trackingNumber),
		slog.String("code", code),
		slog.Bool("duplicate", duplicate),
	)
}

// ForcedProgression logs a status auto-advance caused by shipping evidence.
func (l *Logger) ForcedProgression(leadID, from, to string) {
	l.Warn("forced_status_progression",
		slog.String("lead_id", leadID),
		slog.String("from", from),
		slog.String("to", to),
	)
}

package logging

import (
	"context"
	"log/slog"
	"strings"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldMediaPath identifies the recording a log line is about.
	FieldMediaPath = "media_path"
	// FieldCorrelationID ties together every line emitted for one finalize or sweep.
	FieldCorrelationID = "correlation_id"
	// FieldSessionID identifies one process lifetime.
	FieldSessionID = "session_id"
	// FieldEventType classifies warnings and errors for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint suggests the next step to the operator.
	FieldErrorHint = "error_hint"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldDecisionType names the policy that produced a decision line.
	FieldDecisionType = "decision_type"
	// FieldAttempt is the 1-based attempt number within a retry loop.
	FieldAttempt = "attempt"
)

type contextKey int

const (
	mediaPathKey contextKey = iota
	correlationIDKey
)

// WithMediaPath tags ctx with the recording being processed.
func WithMediaPath(ctx context.Context, path string) context.Context {
	return context.WithValue(ctx, mediaPathKey, path)
}

// WithCorrelationID tags ctx with an identifier shared by related log lines.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// CorrelationIDFromContext returns the correlation identifier, if any.
func CorrelationIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(correlationIDKey).(string)
	return id, ok && strings.TrimSpace(id) != ""
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 2)
	if path, ok := ctx.Value(mediaPathKey).(string); ok && path != "" {
		fields = append(fields, slog.String(FieldMediaPath, path))
	}
	if id, ok := CorrelationIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, id))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}

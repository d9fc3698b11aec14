package logging

import (
	"context"
	"log/slog"

	"glimpse/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldEventType is the machine-readable event name for a log line.
	FieldEventType = "event_type"
	// FieldErrorHint tells the operator what to check next.
	FieldErrorHint = "error_hint"
	// FieldImpact describes what the user loses when the warning fires.
	FieldImpact = "impact"
	// FieldErrorClass carries services.Classify output.
	FieldErrorClass = "error_class"
	// FieldDecisionType names the keep/discard decision being logged.
	FieldDecisionType = "decision_type"
	// FieldCycleID is the standardized structured logging key for capture and archive cycle identifiers.
	FieldCycleID = "cycle_id"
	// FieldDisplay is the positional display index.
	FieldDisplay = "display"
	// FieldTrigger records what started a cycle (periodic, adhoc, manual).
	FieldTrigger = "trigger"
	// FieldEntryID is the standardized structured logging key for entry identifiers.
	FieldEntryID = "entry_id"
	// FieldCorrelationID is the standardized structured logging key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldSessionID identifies one daemon process run.
	FieldSessionID = "session_id"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if id, ok := services.CycleIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCycleID, id))
	}
	if display, ok := services.DisplayFromContext(ctx); ok {
		fields = append(fields, slog.Int(FieldDisplay, display))
	}
	if trigger, ok := services.TriggerFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldTrigger, trigger))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
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

package services

import "context"

type contextKey string

const (
	cycleIDKey   contextKey = "cycle_id"
	displayKey   contextKey = "display"
	triggerKey   contextKey = "trigger"
	requestIDKey contextKey = "request_id"
)

// WithCycleID annotates context with the capture or archive cycle identifier.
func WithCycleID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, cycleIDKey, id)
}

// CycleIDFromContext extracts the cycle identifier if present.
func CycleIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(cycleIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithDisplay annotates context with the positional display index being processed.
func WithDisplay(ctx context.Context, display int) context.Context {
	return context.WithValue(ctx, displayKey, display)
}

// DisplayFromContext returns the display index if present.
func DisplayFromContext(ctx context.Context) (int, bool) {
	v := ctx.Value(displayKey)
	if v == nil {
		return 0, false
	}
	switch val := v.(type) {
	case int:
		return val, true
	case int64:
		return int(val), true
	default:
		return 0, false
	}
}

// WithTrigger annotates context with what started the work (periodic, adhoc, manual).
func WithTrigger(ctx context.Context, trigger string) context.Context {
	if trigger == "" {
		return ctx
	}
	return context.WithValue(ctx, triggerKey, trigger)
}

// TriggerFromContext returns the trigger name if present.
func TriggerFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(triggerKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

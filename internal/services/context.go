package services

import "context"

type contextKey string

const (
	stageKey     contextKey = "stage"
	resultIDKey  contextKey = "result_id"
	requestIDKey contextKey = "request_id"
)

// WithStage annotates context with the wizard stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	if str, ok := ctx.Value(stageKey).(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithResultID annotates context with a generation job identifier.
func WithResultID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, resultIDKey, id)
}

// ResultIDFromContext extracts the generation job identifier if present.
func ResultIDFromContext(ctx context.Context) (string, bool) {
	if str, ok := ctx.Value(resultIDKey).(string); ok && str != "" {
		return str, true
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
	if str, ok := ctx.Value(requestIDKey).(string); ok && str != "" {
		return str, true
	}
	return "", false
}

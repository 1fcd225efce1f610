package services

import "context"

type contextKey string

const (
	workKey      contextKey = "work"
	chapterKey   contextKey = "chapter"
	stageKey     contextKey = "stage"
	requestIDKey contextKey = "request_id"
)

// WithWork annotates context with the work name.
func WithWork(ctx context.Context, work string) context.Context {
	if work == "" {
		return ctx
	}
	return context.WithValue(ctx, workKey, work)
}

// WorkFromContext returns the work name if present.
func WorkFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(workKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithChapter annotates context with the chapter ordinal.
func WithChapter(ctx context.Context, chapter int) context.Context {
	if chapter <= 0 {
		return ctx
	}
	return context.WithValue(ctx, chapterKey, chapter)
}

// ChapterFromContext extracts the chapter ordinal if present.
func ChapterFromContext(ctx context.Context) (int, bool) {
	v := ctx.Value(chapterKey)
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

// WithStage annotates context with the pipeline stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(stageKey)
	if str, ok := v.(string); ok && str != "" {
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
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

package logging

import (
	"context"
	"log/slog"

	"narrate/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldWork is the standardized structured logging key for work names.
	FieldWork = "work"
	// FieldChapter is the standardized structured logging key for chapter ordinals.
	FieldChapter = "chapter"
	// FieldStage is the standardized structured logging key for pipeline stage names.
	FieldStage = "stage"
	// FieldRole is the standardized structured logging key for script role labels.
	FieldRole = "role"
	// FieldCorrelationID is the standardized structured logging key for run correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldEventType classifies warnings and errors for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint carries the operator's next step.
	FieldErrorHint = "error_hint"
	// FieldErrorKind carries services.Kind for the failure.
	FieldErrorKind = "error_kind"
	// FieldImpact is the standardized key for user-facing consequence of a warning.
	FieldImpact = "impact"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if work, ok := services.WorkFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldWork, work))
	}
	if chapter, ok := services.ChapterFromContext(ctx); ok {
		fields = append(fields, slog.Int(FieldChapter, chapter))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStage, stage))
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

// FailureAttrs describes err for ErrorWithContext and WarnWithContext calls.
func FailureAttrs(err error) []Attr {
	attrs := []Attr{Error(err), String(FieldErrorKind, services.Kind(err))}
	if hint := services.Hint(err); hint != "" {
		attrs = append(attrs, String(FieldErrorHint, hint))
	}
	return attrs
}

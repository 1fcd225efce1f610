package stageexec

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"narrate/internal/ledger"
	"narrate/internal/logging"
	"narrate/internal/services"
	"narrate/internal/stage"
)

// Recorder persists stage events.
type Recorder interface {
	Record(context.Context, ledger.Event) error
}

// Options controls stage execution and ledger persistence behavior.
type Options struct {
	Logger    *slog.Logger
	Ledger    Recorder
	Handler   stage.Handler
	StageName string
	// Reached is the chapter status a successful run establishes.
	Reached ledger.Status
	Target  stage.Target
	RunID   string
}

// Run executes one stage for a chapter, logs its start and end, and records
// the outcome in the ledger. The handler's error is returned unchanged.
func Run(ctx context.Context, opts Options) (stage.Report, error) {
	if opts.Handler == nil {
		return stage.Report{}, fmt.Errorf("stage handler unavailable: %s", opts.StageName)
	}

	stageCtx := services.WithStage(ctx, opts.StageName)
	stageLogger := logging.WithContext(stageCtx, opts.Logger)
	stageLogger.Info(
		fmt.Sprintf("%s started", stageLabel(opts.StageName)),
		logging.String(logging.FieldEventType, "stage_start"),
	)

	started := time.Now()
	report, err := opts.Handler.Execute(stageCtx, opts.Target)
	event := ledger.Event{
		RunID:      opts.RunID,
		Work:       opts.Target.Work,
		Chapter:    opts.Target.Chapter,
		Stage:      opts.StageName,
		Artifact:   report.Artifact,
		StartedAt:  started,
		FinishedAt: time.Now(),
	}
	if err != nil {
		event.Outcome = ledger.OutcomeFailed
		event.ErrorKind = services.Kind(err)
		event.ErrorMessage = strings.TrimSpace(err.Error())
		logging.ErrorWithContext(stageLogger, "stage failed", "stage_failure",
			append(logging.FailureAttrs(err), logging.Duration("elapsed", time.Since(started)))...,
		)
		persist(stageCtx, stageLogger, opts.Ledger, event)
		return report, err
	}

	event.Outcome = ledger.OutcomeDone
	if report.Skipped {
		event.Outcome = ledger.OutcomeSkipped
	}
	event.Reached = opts.Reached
	persist(stageCtx, stageLogger, opts.Ledger, event)

	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String("outcome", string(event.Outcome)),
		logging.String("artifact", report.Artifact),
		logging.Duration("elapsed", time.Since(started)),
	}
	if report.Warnings > 0 {
		attrs = append(attrs, logging.Int("warnings", report.Warnings))
	}
	if report.Detail != "" {
		attrs = append(attrs, logging.String("detail", report.Detail))
	}
	stageLogger.Info(fmt.Sprintf("%s completed", stageLabel(opts.StageName)), logging.Args(attrs...)...)
	return report, nil
}

// persist records ev; a ledger failure never masks the stage result.
func persist(ctx context.Context, logger *slog.Logger, recorder Recorder, ev ledger.Event) {
	if recorder == nil {
		return
	}
	if err := recorder.Record(ctx, ev); err != nil {
		logging.WarnWithContext(logger, "failed to record stage event", "ledger_write_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "status output may be stale for this chapter"),
			logging.String(logging.FieldErrorHint, "check permissions on the ledger database"),
		)
	}
}

func stageLabel(name string) string {
	if name == "" {
		return "stage"
	}
	parts := strings.Fields(strings.ReplaceAll(name, "_", " "))
	for i, part := range parts {
		runes := []rune(strings.ToLower(part))
		runes[0] = unicode.ToUpper(runes[0])
		parts[i] = string(runes)
	}
	return strings.Join(parts, " ")
}

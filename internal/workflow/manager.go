package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"narrate/internal/chapterize"
	"narrate/internal/ledger"
	"narrate/internal/logging"
	"narrate/internal/services"
	"narrate/internal/stage"
	"narrate/internal/stageexec"
	"narrate/internal/store"
)

// Manager coordinates chapter runs using the registered stages.
type Manager struct {
	store    *store.Store
	ledger   Ledger
	stages   StageSet
	logger   *slog.Logger
	newRunID func() string
}

// NewManager constructs a workflow manager. led may be nil, in which case
// nothing is recorded.
func NewManager(st *store.Store, led Ledger, stages StageSet, logger *slog.Logger) *Manager {
	return &Manager{
		store:    st,
		ledger:   led,
		stages:   stages,
		logger:   logging.NewComponentLogger(logger, "workflow"),
		newRunID: newRunID,
	}
}

func newRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

type pipelineStage struct {
	name    string
	handler stage.Handler
	reached ledger.Status
}

// Initialize splits a source into a work and records every chapter as split.
func (m *Manager) Initialize(ctx context.Context, req chapterize.Request) (chapterize.Result, error) {
	if m.stages.Initializer == nil {
		return chapterize.Result{}, fmt.Errorf("stage handler unavailable: %s", StageSplit)
	}
	runID := m.newRunID()
	ctx = services.WithRequestID(ctx, runID)

	result, err := m.stages.Initializer.Initialize(ctx, req)
	if err != nil {
		logging.ErrorWithContext(logging.WithContext(ctx, m.logger), "work initialization failed", "init_failure",
			append(logging.FailureAttrs(err), logging.String("source", req.SourcePath))...)
		return result, err
	}
	if m.ledger == nil {
		return result, nil
	}
	record := func(chapter int, outcome ledger.Outcome) {
		ev := ledger.Event{
			RunID:    runID,
			Work:     result.Work,
			Chapter:  chapter,
			Stage:    StageSplit,
			Outcome:  outcome,
			Artifact: m.store.Path(store.ChapterScope(result.Work, chapter), store.KeyRaw),
			Reached:  ledger.StatusSplit,
		}
		if err := m.ledger.Record(ctx, ev); err != nil {
			logging.WarnWithContext(m.logger, "failed to record split event", "ledger_write_failed",
				logging.String(logging.FieldWork, result.Work),
				logging.Int(logging.FieldChapter, chapter),
				logging.Error(err),
				logging.String(logging.FieldImpact, "status output may omit this chapter"),
			)
		}
	}
	for _, chapter := range result.Written {
		record(chapter, ledger.OutcomeDone)
	}
	for _, chapter := range result.Kept {
		record(chapter, ledger.OutcomeSkipped)
	}
	return result, nil
}

// RunChapter advances one chapter through every remaining stage, stopping at
// the first failure.
func (m *Manager) RunChapter(ctx context.Context, work string, chapter int, opts Options) Outcome {
	started := time.Now()
	runID := m.newRunID()
	outcome := Outcome{Work: work, Chapter: chapter, Status: ledger.StatusSplit, RunID: runID}

	ctx = services.WithWork(ctx, work)
	ctx = services.WithChapter(ctx, chapter)
	ctx = services.WithRequestID(ctx, runID)
	logger := logging.WithContext(ctx, m.logger)

	if err := m.precheck(work, chapter); err != nil {
		outcome.FailedStage = StageSplit
		outcome.fail(err)
		logging.ErrorWithContext(logger, "chapter run failed", "chapter_failure",
			append(logging.FailureAttrs(err), logging.String("failed_stage", StageSplit))...)
		outcome.Elapsed = time.Since(started)
		return outcome
	}

	target := stage.Target{Work: work, Chapter: chapter}
	for _, stg := range m.pipeline(opts) {
		if err := ctx.Err(); err != nil {
			outcome.FailedStage = stg.name
			outcome.fail(err)
			break
		}
		report, err := stageexec.Run(ctx, stageexec.Options{
			Logger:    m.logger,
			Ledger:    m.recorder(),
			Handler:   stg.handler,
			StageName: stg.name,
			Reached:   stg.reached,
			Target:    target,
			RunID:     runID,
		})
		if err != nil {
			outcome.FailedStage = stg.name
			outcome.fail(err)
			break
		}
		outcome.Status = stg.reached
		outcome.Warnings += report.Warnings
		if report.Artifact != "" {
			outcome.Artifact = report.Artifact
		}
	}
	outcome.Elapsed = time.Since(started)

	if outcome.Failed() {
		logging.ErrorWithContext(logger, "chapter run failed", "chapter_failure",
			append(logging.FailureAttrs(outcome.Err),
				logging.String("failed_stage", outcome.FailedStage),
				logging.String("status", string(outcome.Status)),
				logging.Duration("elapsed", outcome.Elapsed),
			)...)
		return outcome
	}
	logger.Info("chapter run completed",
		logging.String(logging.FieldEventType, "chapter_complete"),
		logging.String("status", string(outcome.Status)),
		logging.String("artifact", outcome.Artifact),
		logging.Int("warnings", outcome.Warnings),
		logging.Duration("elapsed", outcome.Elapsed),
	)
	return outcome
}

// RunRange runs chapters from..to inclusive. Each chapter is independent: a
// failure is reported in its Outcome and the range continues. A cancelled
// context ends the range early.
func (m *Manager) RunRange(ctx context.Context, work string, from, to int, opts Options) []Outcome {
	if to < from {
		to = from
	}
	outcomes := make([]Outcome, 0, to-from+1)
	for chapter := from; chapter <= to; chapter++ {
		if ctx.Err() != nil {
			break
		}
		outcomes = append(outcomes, m.RunChapter(ctx, work, chapter, opts))
	}

	failed := 0
	for _, o := range outcomes {
		if o.Failed() {
			failed++
		}
	}
	m.logger.Info("chapter range finished",
		logging.String(logging.FieldEventType, "range_complete"),
		logging.String(logging.FieldWork, work),
		logging.Int("from", from),
		logging.Int("to", to),
		logging.Int("chapters", len(outcomes)),
		logging.Int("failed", failed),
	)
	return outcomes
}

func (m *Manager) precheck(work string, chapter int) error {
	if chapter < 1 {
		return services.Wrap(services.ErrConfiguration, StageSplit, "validate chapter",
			fmt.Sprintf("chapter ordinals start at 1, got %d", chapter), nil)
	}
	scope := store.ChapterScope(work, chapter)
	if err := store.ValidateScope(scope); err != nil {
		return services.Wrap(services.ErrConfiguration, StageSplit, "validate chapter", err.Error(), nil)
	}
	if !m.store.Exists(scope, store.KeyRaw) {
		return services.Wrap(services.ErrNotFound, StageSplit, "read chapter",
			fmt.Sprintf("%s chapter %d has no raw text; run `narrate init` first", work, chapter), nil)
	}
	return nil
}

func (m *Manager) recorder() stageexec.Recorder {
	if m.ledger == nil {
		return nil
	}
	return m.ledger
}

func (o *Outcome) fail(err error) {
	o.Err = err
	o.ErrorKind = services.Kind(err)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		o.ErrorKind = "cancelled"
	}
	o.Error = strings.TrimSpace(err.Error())
}

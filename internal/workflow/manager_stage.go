package workflow

import (
	"context"
	"fmt"

	"narrate/internal/ledger"
	"narrate/internal/logging"
	"narrate/internal/script"
	"narrate/internal/stage"
	"narrate/internal/store"
)

func (m *Manager) pipeline(opts Options) []pipelineStage {
	return []pipelineStage{
		{name: StageScript, handler: stage.HandlerFunc(func(ctx context.Context, t stage.Target) (stage.Report, error) {
			return m.runScript(ctx, t, opts.Rederive)
		}), reached: ledger.StatusScripted},
		{name: StageCharacters, handler: stage.HandlerFunc(m.runCharacters), reached: ledger.StatusRegistered},
		{name: StageVoices, handler: stage.HandlerFunc(m.runVoices), reached: ledger.StatusVoiced},
		{name: StageAssemble, handler: stage.HandlerFunc(m.runAssemble), reached: ledger.StatusAssembled},
	}
}

func (m *Manager) runScript(ctx context.Context, t stage.Target, rederive bool) (stage.Report, error) {
	if m.stages.Deriver == nil {
		return stage.Report{}, fmt.Errorf("stage handler unavailable: %s", StageScript)
	}
	if !rederive {
		if existing, err := script.Load(m.store, t.Work, t.Chapter); err == nil {
			return stage.Report{
				Artifact: m.store.Path(store.ChapterScope(t.Work, t.Chapter), store.KeyScript),
				Skipped:  true,
				Detail:   fmt.Sprintf("reused script with %d lines", len(existing.Lines)),
			}, nil
		}
	} else if m.ledger != nil {
		if err := m.ledger.Rewind(ctx, t.Work, t.Chapter, ledger.StatusSplit); err != nil {
			logging.WarnWithContext(logging.WithContext(ctx, m.logger), "failed to rewind chapter status", "ledger_write_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "status may report later stages as done until they rerun"),
			)
		}
	}

	result, err := m.stages.Deriver.Derive(ctx, t.Work, t.Chapter)
	if err != nil {
		return stage.Report{}, err
	}
	return stage.Report{
		Artifact: result.Path,
		Detail:   fmt.Sprintf("%d lines, %d roles", result.Lines, len(result.Roles)),
	}, nil
}

func (m *Manager) runCharacters(ctx context.Context, t stage.Target) (stage.Report, error) {
	if m.stages.Registrar == nil {
		return stage.Report{}, fmt.Errorf("stage handler unavailable: %s", StageCharacters)
	}
	result, err := m.stages.Registrar.Register(ctx, t.Work, t.Chapter)
	if err != nil {
		return stage.Report{}, err
	}
	return stage.Report{
		Artifact: result.Path,
		Skipped:  result.NoOp,
		Detail:   fmt.Sprintf("%d added, %d registered", len(result.Added), result.Total),
	}, nil
}

func (m *Manager) runVoices(ctx context.Context, t stage.Target) (stage.Report, error) {
	if m.stages.Voices == nil {
		return stage.Report{}, fmt.Errorf("stage handler unavailable: %s", StageVoices)
	}
	result, err := m.stages.Voices.Sync(ctx, t.Work)
	if err != nil {
		return stage.Report{}, err
	}
	return stage.Report{
		Artifact: result.Path,
		Skipped:  len(result.Generated) == 0 && len(result.Failed) == 0,
		Warnings: len(result.Failed),
		Detail:   fmt.Sprintf("%d generated, %d failed, %d already bound", len(result.Generated), len(result.Failed), len(result.Skipped)),
	}, nil
}

func (m *Manager) runAssemble(ctx context.Context, t stage.Target) (stage.Report, error) {
	if m.stages.Assembler == nil {
		return stage.Report{}, fmt.Errorf("stage handler unavailable: %s", StageAssemble)
	}
	result, err := m.stages.Assembler.Assemble(ctx, t.Work, t.Chapter)
	if err != nil {
		return stage.Report{}, err
	}
	return stage.Report{
		Artifact: result.Path,
		Skipped:  result.Reused,
		Detail:   fmt.Sprintf("%d segments, %d ms", result.Segments, result.DurationMS),
	}, nil
}

package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"narrate/internal/ledger"
	"narrate/internal/logging"
	"narrate/internal/services"
	"narrate/internal/stage"
	"narrate/internal/stageexec"
	"narrate/internal/voices"
	"narrate/internal/workflow"
)

// stageCall runs one stage and returns its report plus the structured
// result printed with --json.
type stageCall func(context.Context) (stage.Report, any, error)

func newScriptCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "script <work> <chapter>",
		Short: "Adapt a chapter into a role-attributed script",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			work, chapter, err := parseTarget(args)
			if err != nil {
				return err
			}
			return ctx.withPipeline(func(p *pipeline) error {
				if err := p.cfg.RequireLLM(); err != nil {
					return services.Wrap(services.ErrConfiguration, workflow.StageScript, "load credentials", err.Error(), nil)
				}
				if err := p.ledger.Rewind(cmd.Context(), work, chapter, ledger.StatusSplit); err != nil {
					logging.WarnWithContext(p.logger, "failed to rewind chapter status", "ledger_write_failed",
						logging.Error(err),
						logging.String(logging.FieldImpact, "status may report later stages as done until they rerun"),
					)
				}
				return ctx.runStage(cmd, p, workflow.StageScript, ledger.StatusScripted, stage.Target{Work: work, Chapter: chapter},
					func(stageCtx context.Context) (stage.Report, any, error) {
						result, err := p.deriver.Derive(stageCtx, work, chapter)
						return stage.Report{Artifact: result.Path, Detail: fmt.Sprintf("%d lines, %d roles", result.Lines, len(result.Roles))}, result, err
					})
			})
		},
	}
}

func newCharactersCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "characters <work> <chapter>",
		Short: "Register the chapter's new roles in the character registry",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			work, chapter, err := parseTarget(args)
			if err != nil {
				return err
			}
			return ctx.withPipeline(func(p *pipeline) error {
				if err := p.cfg.RequireLLM(); err != nil {
					return services.Wrap(services.ErrConfiguration, workflow.StageCharacters, "load credentials", err.Error(), nil)
				}
				return ctx.runStage(cmd, p, workflow.StageCharacters, ledger.StatusRegistered, stage.Target{Work: work, Chapter: chapter},
					func(stageCtx context.Context) (stage.Report, any, error) {
						result, err := p.registrar.Register(stageCtx, work, chapter)
						detail := "no new roles"
						if !result.NoOp {
							names := make([]string, 0, len(result.Added))
							for _, c := range result.Added {
								names = append(names, fmt.Sprintf("%s(#%d)", c.Role, c.ID))
							}
							detail = fmt.Sprintf("added %v", names)
						}
						return stage.Report{Artifact: result.Path, Skipped: result.NoOp, Detail: detail}, result, err
					})
			})
		},
	}
}

func newVoicesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "voices <work>",
		Short: "Generate and bind voice samples for unbound characters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			work, err := parseWork(args[0])
			if err != nil {
				return err
			}
			return ctx.withPipeline(func(p *pipeline) error {
				if err := p.cfg.RequireVoiceDesign(); err != nil {
					return services.Wrap(services.ErrConfiguration, workflow.StageVoices, "load credentials", err.Error(), nil)
				}
				var result voices.Result
				err := ctx.runStage(cmd, p, workflow.StageVoices, "", stage.Target{Work: work},
					func(stageCtx context.Context) (stage.Report, any, error) {
						var err error
						result, err = p.assigner.Sync(stageCtx, work)
						return stage.Report{
							Artifact: result.Path,
							Skipped:  len(result.Generated) == 0 && len(result.Failed) == 0,
							Warnings: len(result.Failed),
							Detail:   fmt.Sprintf("%d generated, %d failed, %d already bound", len(result.Generated), len(result.Failed), len(result.Skipped)),
						}, result, err
					})
				if err != nil {
					return err
				}
				if !ctx.jsonOutput() {
					for _, f := range result.Failed {
						fmt.Fprintf(cmd.OutOrStdout(), "failed: %s (%s): %s\n", f.Role, f.Kind, f.Error)
					}
				}
				if len(result.Failed) > 0 {
					return fmt.Errorf("%d of %d roles could not be voiced; rerun `narrate voices %s` to retry", len(result.Failed), len(result.Failed)+len(result.Generated), work)
				}
				return nil
			})
		},
	}
}

func newAssembleCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "assemble <work> <chapter>",
		Short: "Synthesize every script line and join them into chapter audio",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			work, chapter, err := parseTarget(args)
			if err != nil {
				return err
			}
			return ctx.withPipeline(func(p *pipeline) error {
				return ctx.runStage(cmd, p, workflow.StageAssemble, ledger.StatusAssembled, stage.Target{Work: work, Chapter: chapter},
					func(stageCtx context.Context) (stage.Report, any, error) {
						result, err := p.assembler.Assemble(stageCtx, work, chapter)
						detail := fmt.Sprintf("%d segments, %.1fs", result.Segments, float64(result.DurationMS)/1000)
						if result.Reused {
							detail += " (reused)"
						}
						return stage.Report{Artifact: result.Path, Skipped: result.Reused, Detail: detail}, result, err
					})
			})
		},
	}
}

// runStage executes call through stageexec so manual runs are logged and,
// for chapter stages, recorded in the ledger like orchestrated ones.
func (c *commandContext) runStage(cmd *cobra.Command, p *pipeline, name string, reached ledger.Status, target stage.Target, call stageCall) error {
	runID := uuid.NewString()
	runCtx := services.WithWork(cmd.Context(), target.Work)
	runCtx = services.WithChapter(runCtx, target.Chapter)
	runCtx = services.WithRequestID(runCtx, runID)

	var recorder stageexec.Recorder
	if target.Chapter > 0 {
		recorder = p.ledger
	}
	var payload any
	report, err := stageexec.Run(runCtx, stageexec.Options{
		Logger:    p.logger,
		Ledger:    recorder,
		StageName: name,
		Reached:   reached,
		Target:    target,
		RunID:     runID,
		Handler: stage.HandlerFunc(func(stageCtx context.Context, _ stage.Target) (stage.Report, error) {
			r, v, err := call(stageCtx)
			payload = v
			return r, err
		}),
	})
	if err != nil {
		return err
	}
	if c.jsonOutput() {
		return writeJSON(cmd, payload)
	}
	out := cmd.OutOrStdout()
	if report.Detail != "" {
		fmt.Fprintf(out, "%s: %s\n", name, report.Detail)
	}
	fmt.Fprintln(out, report.Artifact)
	return nil
}

func parseTarget(args []string) (string, int, error) {
	work, err := parseWork(args[0])
	if err != nil {
		return "", 0, err
	}
	chapter, err := parseChapter(args[1])
	if err != nil {
		return "", 0, err
	}
	return work, chapter, nil
}

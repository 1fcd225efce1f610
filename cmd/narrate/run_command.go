package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"narrate/internal/notifications"
	"narrate/internal/workflow"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var to int
	var rederive bool

	cmd := &cobra.Command{
		Use:   "run <work> <chapter>",
		Short: "Run every remaining stage for a chapter or a range of chapters",
		Long: `Advance chapters through script, characters, voices, and assemble.
Stages whose artifacts are already current are skipped, so rerunning a
finished chapter is cheap. With --to the chapters of the range run one after
another; a failed chapter is reported and the range continues.

Examples:
  narrate run 雨夜 3
  narrate run 雨夜 1 --to 10
  narrate run 雨夜 3 --rederive`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			work, from, err := parseTarget(args)
			if err != nil {
				return err
			}
			if to == 0 {
				to = from
			}
			if to < from {
				return fmt.Errorf("--to %d is before chapter %d", to, from)
			}
			return ctx.withPipeline(func(p *pipeline) error {
				started := time.Now()
				outcomes := p.manager.RunRange(cmd.Context(), work, from, to, workflow.Options{Rederive: rederive})
				if err := cmd.Context().Err(); err != nil {
					return err
				}
				failed := countFailed(outcomes)
				p.notify(cmd.Context(), func(nctx context.Context, n notifications.Service) error {
					return n.NotifyRangeCompleted(nctx, work, len(outcomes)-failed, failed, time.Since(started))
				})
				if ctx.jsonOutput() {
					if err := writeJSON(cmd, outcomes); err != nil {
						return err
					}
				} else {
					renderOutcomes(cmd, outcomes)
				}
				return outcomesError(outcomes)
			})
		},
	}

	cmd.Flags().IntVar(&to, "to", 0, "Last chapter of the range (inclusive)")
	cmd.Flags().BoolVar(&rederive, "rederive", false, "Regenerate the script even when one exists")
	return cmd
}

func renderOutcomes(cmd *cobra.Command, outcomes []workflow.Outcome) {
	out := cmd.OutOrStdout()
	if len(outcomes) == 1 {
		o := outcomes[0]
		if o.Failed() {
			fmt.Fprintf(out, "chapter %d stopped at %s (status %s): %s\n", o.Chapter, o.FailedStage, o.Status, o.Error)
			return
		}
		fmt.Fprintf(out, "chapter %d %s in %s\n", o.Chapter, o.Status, o.Elapsed.Round(time.Millisecond))
		fmt.Fprintln(out, o.Artifact)
		return
	}

	rows := make([][]string, 0, len(outcomes))
	for _, o := range outcomes {
		result := o.Artifact
		failed := ""
		if o.Failed() {
			failed = o.FailedStage
			result = o.Error
		}
		rows = append(rows, []string{strconv.Itoa(o.Chapter), string(o.Status), failed, result})
	}
	fmt.Fprintln(out, renderTable([]string{"Chapter", "Status", "Failed Stage", "Artifact / Error"}, rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft}))
}

func countFailed(outcomes []workflow.Outcome) int {
	failed := 0
	for _, o := range outcomes {
		if o.Failed() {
			failed++
		}
	}
	return failed
}

func outcomesError(outcomes []workflow.Outcome) error {
	failed := countFailed(outcomes)
	if failed == 0 {
		return nil
	}
	if len(outcomes) == 1 {
		return outcomes[0].Err
	}
	return fmt.Errorf("%d of %d chapters failed", failed, len(outcomes))
}

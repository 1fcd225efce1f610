package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"narrate/internal/ledger"
	"narrate/internal/narration"
	"narrate/internal/services"
	"narrate/internal/store"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var chapter int
	var limit int

	cmd := &cobra.Command{
		Use:   "status <work>",
		Short: "Show the pipeline state of every chapter of a work",
		Long: `Show the pipeline state of every chapter of a work. With --chapter, show
the recorded stage history of one chapter, newest first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			work, err := parseWork(args[0])
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("chapter") && chapter < 1 {
				return fmt.Errorf("invalid chapter %d: ordinals start at 1", chapter)
			}
			return ctx.withPipeline(func(p *pipeline) error {
				if chapter > 0 {
					return renderChapterHistory(cmd, ctx, p, work, chapter, limit)
				}
				rows, err := p.manager.Status(cmd.Context(), work)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, rows)
				}
				table := make([][]string, 0, len(rows))
				for _, row := range rows {
					failure := ""
					if row.FailedStage != "" {
						failure = fmt.Sprintf("%s: %s", row.FailedStage, row.ErrorKind)
					}
					table = append(table, []string{
						strconv.Itoa(row.Chapter),
						string(row.Status),
						yesNo(row.Script),
						yesNo(row.Audio),
						failure,
						formatUpdated(row.UpdatedAt),
					})
				}
				out := cmd.OutOrStdout()
				if len(table) == 0 {
					fmt.Fprintln(out, "No chapters")
				} else {
					fmt.Fprintln(out, renderTable(
						[]string{"Chapter", "Status", "Script", "Audio", "Failure", "Updated"},
						table,
						[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
					))
				}
				fmt.Fprintln(out, p.store.Dir(store.WorkScope(work)))
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&chapter, "chapter", 0, "Show the stage history of one chapter")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of history entries with --chapter")
	return cmd
}

type historyEntry struct {
	RunID      string    `json:"run_id"`
	Stage      string    `json:"stage"`
	Outcome    string    `json:"outcome"`
	ErrorKind  string    `json:"error_kind,omitempty"`
	Error      string    `json:"error,omitempty"`
	Artifact   string    `json:"artifact,omitempty"`
	FinishedAt time.Time `json:"finished_at"`
}

type chapterHistory struct {
	Work    string         `json:"work"`
	Chapter int            `json:"chapter"`
	Status  string         `json:"status"`
	Events  []historyEntry `json:"events"`
}

func renderChapterHistory(cmd *cobra.Command, ctx *commandContext, p *pipeline, work string, chapter, limit int) error {
	if !p.store.WorkExists(work) {
		return services.Wrap(services.ErrNotFound, "status", "load work", fmt.Sprintf("work %q is not initialized", work), nil)
	}
	state, ok, err := p.ledger.Chapter(cmd.Context(), work, chapter)
	if err != nil {
		return err
	}
	events, err := p.ledger.Events(cmd.Context(), work, chapter, limit)
	if err != nil {
		return err
	}

	history := chapterHistory{Work: work, Chapter: chapter, Status: "unrecorded", Events: make([]historyEntry, 0, len(events))}
	if ok {
		history.Status = string(state.Status)
	}
	for _, ev := range events {
		history.Events = append(history.Events, historyEntry{
			RunID:      ev.RunID,
			Stage:      ev.Stage,
			Outcome:    string(ev.Outcome),
			ErrorKind:  ev.ErrorKind,
			Error:      ev.ErrorMessage,
			Artifact:   ev.Artifact,
			FinishedAt: ev.FinishedAt,
		})
	}
	if ctx.jsonOutput() {
		return writeJSON(cmd, history)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "chapter %d: %s\n", chapter, history.Status)
	if len(history.Events) == 0 {
		fmt.Fprintln(out, "No recorded stage runs")
	} else {
		rows := make([][]string, 0, len(history.Events))
		for _, ev := range history.Events {
			result := ev.Artifact
			if ev.Outcome == string(ledger.OutcomeFailed) {
				result = fmt.Sprintf("%s: %s", ev.ErrorKind, ev.Error)
			}
			rows = append(rows, []string{formatUpdated(ev.FinishedAt), ev.Stage, ev.Outcome, result})
		}
		fmt.Fprintln(out, renderTable([]string{"Finished", "Stage", "Outcome", "Artifact / Error"}, rows,
			[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft}))
	}
	fmt.Fprintln(out, p.store.Dir(store.ChapterScope(work, chapter)))
	return nil
}

type workSummary struct {
	Work       string `json:"work"`
	Chapters   int    `json:"chapters"`
	Characters int    `json:"characters"`
	Bound      int    `json:"bound"`
	Dir        string `json:"dir"`
}

func newWorksCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "works",
		Short: "List initialized works",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			names, err := st.Works()
			if err != nil {
				return err
			}
			summaries := make([]workSummary, 0, len(names))
			for _, name := range names {
				summaries = append(summaries, summarizeWork(st, name))
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, summaries)
			}
			out := cmd.OutOrStdout()
			if len(summaries) == 0 {
				fmt.Fprintln(out, "No works")
			} else {
				rows := make([][]string, 0, len(summaries))
				for _, s := range summaries {
					rows = append(rows, []string{s.Work, strconv.Itoa(s.Chapters), strconv.Itoa(s.Characters), strconv.Itoa(s.Bound)})
				}
				fmt.Fprintln(out, renderTable([]string{"Work", "Chapters", "Characters", "Bound"}, rows,
					[]columnAlignment{alignLeft, alignRight, alignRight, alignRight}))
			}
			fmt.Fprintln(out, cfg.NovelsDir())
			return nil
		},
	}
}

// summarizeWork tolerates missing documents; counts are zero for them.
func summarizeWork(st *store.Store, work string) workSummary {
	summary := workSummary{Work: work, Dir: st.Dir(store.WorkScope(work))}
	if chapters, err := st.Chapters(work); err == nil {
		summary.Chapters = len(chapters)
	}
	var registry narration.Registry
	if err := st.ReadJSON(store.WorkScope(work), store.KeyCharacters, &registry); err == nil {
		summary.Characters = len(registry)
	}
	var bindings narration.Bindings
	if err := st.ReadJSON(store.WorkScope(work), store.KeyBindings, &bindings); err == nil {
		for _, sample := range bindings {
			if sample != "" {
				summary.Bound++
			}
		}
	}
	return summary
}

func formatUpdated(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.Local().Format("2006-01-02 15:04")
}

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"narrate/internal/chapterize"
	"narrate/internal/config"
)

func newInitCommand(ctx *commandContext) *cobra.Command {
	var pattern string
	var name string

	cmd := &cobra.Command{
		Use:   "init <source>",
		Short: "Split a novel into chapters and create a work",
		Long: `Read a source text (plain text in any common Chinese encoding, or HTML),
split it into chapters at lines matching the chapter pattern, and store each
chapter under the work. Existing chapter text is never overwritten, so init is
safe to repeat.

Examples:
  narrate init ~/novels/雨夜.txt
  narrate init book.html --name 雨夜 --pattern '^Chapter \d+'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := config.ExpandPath(strings.TrimSpace(args[0]))
			if err != nil {
				return fmt.Errorf("resolve source path: %w", err)
			}
			return ctx.withPipeline(func(p *pipeline) error {
				result, err := p.manager.Initialize(cmd.Context(), chapterize.Request{
					SourcePath: source,
					Name:       name,
					Pattern:    pattern,
				})
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, result)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, result.Describe())
				fmt.Fprintf(out, "Source encoding: %s\n", result.Charset)
				if result.Seeded {
					fmt.Fprintf(out, "Seeded narrator %q\n", p.cfg.Pipeline.NarratorRole)
				}
				fmt.Fprintln(out, result.Dir)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&pattern, "pattern", "", "Chapter boundary regular expression (default: pipeline.chapter_pattern)")
	cmd.Flags().StringVar(&name, "name", "", "Work name (default: source file name without extension)")
	return cmd
}

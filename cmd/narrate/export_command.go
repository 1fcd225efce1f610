package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"narrate/internal/assembly"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "export <work> <from> <to>",
		Short: "Pack assembled chapter audio in a range into one ZIP archive",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			work, err := parseWork(args[0])
			if err != nil {
				return err
			}
			from, err := parseChapter(args[1])
			if err != nil {
				return err
			}
			to, err := parseChapter(args[2])
			if err != nil {
				return err
			}
			if to < from {
				return fmt.Errorf("invalid range %d..%d: end precedes start", from, to)
			}
			return ctx.withPipeline(func(p *pipeline) error {
				result, err := assembly.Export(p.store, work, from, to)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, result)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "exported %d of %d chapters\n", len(result.Chapters), len(result.Chapters)+len(result.Missing))
				if len(result.Missing) > 0 {
					missing := make([]string, 0, len(result.Missing))
					for _, ch := range result.Missing {
						missing = append(missing, fmt.Sprint(ch))
					}
					fmt.Fprintf(out, "no audio yet: chapters %s\n", strings.Join(missing, ", "))
				}
				fmt.Fprintln(out, result.Path)
				return nil
			})
		},
	}
}

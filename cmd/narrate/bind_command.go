package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"narrate/internal/config"
)

func newBindCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "bind <work> <role> <wav>",
		Short: "Bind a role to a custom voice sample",
		Long: "Copy a WAV file into the voice library and bind it to a role of the work.\n" +
			"Roles bound this way are never regenerated by `narrate voices`.",
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			work, err := parseWork(args[0])
			if err != nil {
				return err
			}
			source, err := config.ExpandPath(strings.TrimSpace(args[2]))
			if err != nil {
				return err
			}
			return ctx.withPipeline(func(p *pipeline) error {
				assignment, err := p.assigner.Bind(cmd.Context(), work, args[1], source)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, assignment)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "bound %s to %s\n", assignment.Role, assignment.Sample)
				fmt.Fprintln(out, p.store.VoicePath(assignment.Sample))
				return nil
			})
		},
	}
}

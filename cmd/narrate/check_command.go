package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"narrate/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var network bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify directories, credentials, and the speech synthesizer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := preflight.RunAll(cmd.Context(), cfg, preflight.Options{Network: network})
			if ctx.jsonOutput() {
				if err := writeJSON(cmd, results); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				for _, r := range results {
					kind := statusOK
					switch {
					case !r.Passed && r.Optional:
						kind = statusWarn
					case !r.Passed:
						kind = statusError
					}
					fmt.Fprintln(out, renderStatusLine(r.Name, kind, r.Detail, colorize))
				}
			}
			if !preflight.Passed(results) {
				return fmt.Errorf("readiness check failed; see the entries marked ERROR")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&network, "network", false, "Also send a test request to the text generation API")
	return cmd
}

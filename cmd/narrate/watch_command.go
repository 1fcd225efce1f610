package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"narrate/internal/chapterize"
	"narrate/internal/config"
	"narrate/internal/inbox"
	"narrate/internal/notifications"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var settle time.Duration
	var scan bool

	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Initialize works from files dropped into the upload inbox",
		Long: `Watch a directory (default: paths.upload_dir) and initialize every text or
HTML file that appears in it as a work named after the file. Files already
present are initialized first unless --scan=false. Runs until interrupted.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			dir := cfg.Paths.UploadDir
			if len(args) > 0 {
				if dir, err = config.ExpandPath(strings.TrimSpace(args[0])); err != nil {
					return fmt.Errorf("resolve watch directory: %w", err)
				}
			}
			if strings.TrimSpace(dir) == "" {
				return fmt.Errorf("no directory given and paths.upload_dir is not configured")
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create upload directory %q: %w", dir, err)
			}

			return ctx.withPipeline(func(p *pipeline) error {
				out := cmd.OutOrStdout()
				handle := func(runCtx context.Context, path string) error {
					result, err := p.manager.Initialize(runCtx, chapterize.Request{SourcePath: path})
					if err != nil {
						p.notify(runCtx, func(nctx context.Context, n notifications.Service) error {
							return n.NotifyError(nctx, err, filepath.Base(path))
						})
						return err
					}
					p.notify(runCtx, func(nctx context.Context, n notifications.Service) error {
						return n.NotifyWorkInitialized(nctx, result.Work, result.Chapters)
					})
					if ctx.jsonOutput() {
						return writeJSON(cmd, result)
					}
					fmt.Fprintln(out, result.Describe())
					fmt.Fprintln(out, result.Dir)
					return nil
				}
				watcher := inbox.New(dir, handle, p.logger, inbox.WithSettle(settle))
				if scan {
					if _, err := watcher.Scan(cmd.Context()); err != nil {
						return err
					}
				}
				if !ctx.jsonOutput() {
					fmt.Fprintf(out, "Watching %s (Ctrl+C to stop)\n", dir)
				}
				return watcher.Run(cmd.Context())
			})
		},
	}

	cmd.Flags().DurationVar(&settle, "settle", time.Second, "How long a file must stay unchanged before it is initialized")
	cmd.Flags().BoolVar(&scan, "scan", true, "Initialize files already in the directory before watching")
	return cmd
}

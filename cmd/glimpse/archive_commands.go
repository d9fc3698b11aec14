package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"glimpse/internal/archive"
	"glimpse/internal/config"
	"glimpse/internal/entries"
	"glimpse/internal/ipc"
	"glimpse/internal/logging"
)

func newArchiveCommand(ctx *commandContext) *cobra.Command {
	archiveCmd := &cobra.Command{
		Use:   "archive",
		Short: "Compress cold screenshots",
	}
	archiveCmd.AddCommand(newArchiveRunCommand(ctx))
	return archiveCmd
}

func newArchiveRunCommand(ctx *commandContext) *cobra.Command {
	var local bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one archive pass now",
		Long: "Run one archive pass now. By default the running daemon performs the pass; " +
			"--local runs it in this process with a progress bar and requires the daemon to be stopped.",
		RunE: func(cmd *cobra.Command, args []string) error {
			var report archive.Report
			if local {
				r, err := runLocalArchive(cmd, ctx, !asJSON)
				if err != nil {
					return err
				}
				report = r
			} else {
				err := ctx.withClient(func(client *ipc.Client) error {
					resp, err := client.ArchiveNow()
					if err != nil {
						return err
					}
					if resp.AlreadyRunning {
						return errors.New("an archive pass is already running in the daemon")
					}
					report = resp.Report
					return nil
				})
				if err != nil {
					return err
				}
			}
			if asJSON {
				return writeJSON(cmd, report)
			}
			printArchiveReport(cmd.OutOrStdout(), report)
			return nil
		},
	}
	cmd.Flags().BoolVar(&local, "local", false, "Archive in this process instead of the daemon")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit the report as JSON")
	return cmd
}

func runLocalArchive(cmd *cobra.Command, ctx *commandContext, showProgress bool) (archive.Report, error) {
	if client, err := ipc.Dial(ctx.socketPath()); err == nil {
		client.Close()
		return archive.Report{}, errors.New("daemon is running; run `glimpse archive run` without --local")
	}
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return archive.Report{}, err
	}
	logger, err := logging.New(logging.Options{
		Level:       "warn",
		Format:      "console",
		OutputPaths: []string{"stderr"},
	})
	if err != nil {
		return archive.Report{}, err
	}
	store, err := entries.Open(cfg, entries.WithLogger(logger))
	if err != nil {
		return archive.Report{}, fmt.Errorf("open entry store: %w", err)
	}
	defer store.Close()

	var progress archive.ProgressFunc
	var bar *progressbar.ProgressBar
	if showProgress {
		progress = func(done, total int) {
			if bar == nil {
				bar = progressbar.NewOptions(total,
					progressbar.OptionSetDescription("Archiving"),
					progressbar.OptionSetWriter(cmd.ErrOrStderr()),
					progressbar.OptionShowCount(),
					progressbar.OptionClearOnFinish(),
				)
			}
			_ = bar.Set(done)
		}
	}

	archiver := archive.New(config.NewStatic(cfg), store, logger)
	report, err := archiver.Trigger(cmd.Context(), progress)
	if bar != nil {
		_ = bar.Finish()
	}
	return report, err
}

func printArchiveReport(out io.Writer, r archive.Report) {
	fmt.Fprintf(out, "Archive pass: %d scanned, %d archived, %d already present, %d skipped, %d failed\n",
		r.Scanned, r.Archived, r.AlreadyPresent, r.Skipped, r.Failed)
}

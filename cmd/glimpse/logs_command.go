package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"glimpse/internal/ipc"
)

const followWaitMillis = 5000

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the daemon log",
		RunE: func(cmd *cobra.Command, args []string) error {
			if lines <= 0 {
				return errors.New("--lines must be positive")
			}
			return ctx.withClient(func(client *ipc.Client) error {
				out := cmd.OutOrStdout()
				resp, err := client.LogTail(ipc.LogTailRequest{Offset: -1, Limit: lines})
				if err != nil {
					return err
				}
				for _, line := range resp.Lines {
					fmt.Fprintln(out, line)
				}
				if !follow {
					return nil
				}

				runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
				defer stop()
				offset := resp.Offset
				for runCtx.Err() == nil {
					resp, err := client.LogTail(ipc.LogTailRequest{
						Offset:     offset,
						Follow:     true,
						WaitMillis: followWaitMillis,
					})
					if err != nil {
						if runCtx.Err() != nil {
							return nil
						}
						return err
					}
					for _, line := range resp.Lines {
						fmt.Fprintln(out, line)
					}
					offset = resp.Offset
				}
				if errors.Is(runCtx.Err(), context.Canceled) {
					return nil
				}
				return runCtx.Err()
			})
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep streaming new lines")
	return cmd
}

package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"glimpse/internal/daemonctl"
	"glimpse/internal/daemonrun"
	"glimpse/internal/ipc"
)

const (
	startWaitTimeout = 10 * time.Second
	stopGracePeriod  = 5 * time.Second
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the capture daemon",
	}
	daemonCmd.AddCommand(newDaemonRunCommand(ctx))
	return daemonCmd
}

func newLifecycleCommands(ctx *commandContext) []*cobra.Command {
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the glimpse daemon in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}
			result, err := daemonctl.EnsureStarted(ctx.socketPath(), exe, daemonLaunchOptions(ctx), startWaitTimeout)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch result.State {
			case daemonctl.StartStateStarted:
				fmt.Fprintf(out, "Daemon started (pid %d)\n", result.PID)
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintf(out, "Daemon already running (pid %d)\n", result.PID)
			}
			return nil
		},
	}

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the glimpse daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			result, err := daemonctl.StopAndTerminate(cfg, ctx.socketPath(), stopGracePeriod)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(out, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if result.ForcedKill {
				fmt.Fprintf(out, "Daemon did not exit in time; killed pid %d\n", result.PID)
				return nil
			}
			fmt.Fprintln(out, "Daemon stopped")
			return nil
		},
	}

	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the glimpse daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}
			result, err := daemonctl.Restart(cfg, ctx.socketPath(), exe, daemonLaunchOptions(ctx), stopGracePeriod, startWaitTimeout)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !result.WasRunning {
				fmt.Fprintln(out, "Daemon was not running")
			}
			fmt.Fprintf(out, "Daemon started (pid %d)\n", result.Start.PID)
			return nil
		},
	}

	return []*cobra.Command{startCmd, stopCmd, restartCmd}
}

func daemonExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	return exe, nil
}

func daemonLaunchOptions(ctx *commandContext) daemonctl.LaunchOptions {
	return daemonctl.LaunchOptions{ConfigPath: ctx.watchablePath()}
}

func newDaemonRunCommand(ctx *commandContext) *cobra.Command {
	var logLevel string
	var development bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the daemon in the foreground until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				ConfigPath:  ctx.watchablePath(),
				LogLevel:    strings.TrimSpace(logLevel),
				Development: development,
			})
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override the configured log level")
	cmd.Flags().BoolVar(&development, "dev", false, "Enable development logging")
	return cmd
}

func newControlCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newStatusCommand(ctx),
		newPauseCommand(ctx),
		newResumeCommand(ctx),
		newCaptureCommand(ctx),
	}
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, capture and archive status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Status()
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp.Status)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, renderStatus(resp, shouldColorize(out)))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit status as JSON")
	return cmd
}

func newPauseCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "pause",
		Short: "Suspend periodic capture",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.Pause(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Capture paused")
				return nil
			})
		},
	}
}

func newResumeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Resume periodic capture",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.Resume(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Capture resumed")
				return nil
			})
		},
	}
}

func newCaptureCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "capture",
		Short: "Capture every display now, bypassing pause, idle and change detection",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.CaptureNow()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if resp.Stored {
					fmt.Fprintln(out, "Capture stored")
					return nil
				}
				fmt.Fprintf(out, "Capture incomplete: %s\n", resp.Message)
				return nil
			})
		},
	}
}

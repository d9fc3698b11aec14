package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"glimpse/internal/notifications"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification to the configured ntfy topic",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			svc := notifications.NewService(cfg)
			if !notifications.Enabled(svc) {
				fmt.Fprintln(cmd.OutOrStdout(), "Notifications not configured (set notifications.ntfy_topic)")
				return nil
			}
			if err := svc.TestNotification(cmd.Context()); err != nil {
				return fmt.Errorf("send test notification: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Test notification sent")
			return nil
		},
	}
}

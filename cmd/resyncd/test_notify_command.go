package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"resyncd/internal/ipc"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.TestNotification()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				switch {
				case resp.Sent:
					fmt.Fprintln(out, "Test notification sent")
				case resp.Message != "":
					fmt.Fprintf(out, "Notification not sent: %s\n", resp.Message)
				default:
					fmt.Fprintln(out, "Notification not sent")
				}
				return nil
			})
		},
	}
}

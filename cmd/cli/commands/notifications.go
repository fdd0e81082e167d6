package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// ConfirmCmd creates the confirm command
func ConfirmCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "confirm <notification_id> <worker_id>",
		Short: "Confirm attendance from a reminder notification",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Staffing.ConfirmAttendance(app.Ctx, args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Attendance confirmed\n")
			return nil
		},
	}
}

// NotificationsCmd creates the notifications command
func NotificationsCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notifications <recipient_id>",
		Short: "Show a user's notifications",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			unreadOnly, _ := cmd.Flags().GetBool("unread")
			inbox, err := app.Staffing.ListNotifications(app.Ctx, args[0])
			if err != nil {
				return err
			}

			shown := 0
			for _, n := range inbox {
				if unreadOnly && n.IsRead {
					continue
				}
				marker := " "
				if !n.IsRead {
					marker = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s [%s] %s\n", marker, n.ID, n.Kind, n.Message)
				shown++
			}
			if shown == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No notifications.")
			}
			return nil
		},
	}
	cmd.Flags().Bool("unread", false, "Only show unread notifications")
	return cmd
}

// MarkReadCmd creates the mark-read command
func MarkReadCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "mark-read <recipient_id> <notification_id>...",
		Short: "Mark notifications as read",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := app.Staffing.MarkNotificationsRead(app.Ctx, args[1:], args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ %d notifications marked read\n", n)
			return nil
		},
	}
}

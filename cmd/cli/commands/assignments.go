package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// ApplyCmd creates the apply command
func ApplyCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "apply <event_id> <worker_id> <job_id>",
		Short: "Apply a worker to a job of an event",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := app.Staffing.ApplyToEvent(app.Ctx, args[0], args[1], args[2])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Assignment %s created (PENDING)\n", id)
			return nil
		},
	}
}

// SetStatusCmd creates the set-status command
func SetStatusCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set-status <assignment_id> <PENDING|APPROVED|BACKUP|DONE>",
		Short: "Change the status of an assignment, optionally moving it to another job",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := parseAssignmentStatus(args[1])
			if err != nil {
				return err
			}
			job, _ := cmd.Flags().GetString("job")
			if err := app.Staffing.ChangeAssignment(app.Ctx, args[0], status, job); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Assignment %s is now %s\n", args[0], status)
			return nil
		},
	}
	cmd.Flags().String("job", "", "Move the assignment to this job of the same event")
	return cmd
}

// RemoveCmd creates the remove command
func RemoveCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <assignment_id>",
		Short: "Remove an assignment and its pending reminders",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Staffing.RemoveAssignment(app.Ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Assignment %s removed\n", args[0])
			return nil
		},
	}
}

// WorkersCmd creates the workers command
func WorkersCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "workers <event_id>",
		Short: "List the workers assigned to an event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			workers, err := app.Staffing.GetWorkersForEvent(app.Ctx, args[0])
			if err != nil {
				return err
			}
			if len(workers) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No workers have applied yet.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ASSIGNMENT\tWORKER\tJOB\tSTATUS\tCONFIRMED\tREMINDERS")
			for _, s := range workers {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%d\n",
					s.AssignmentID, s.WorkerID, s.JobTitle, s.Status, s.Confirmed, s.ConfirmationCount)
			}
			return w.Flush()
		},
	}
}

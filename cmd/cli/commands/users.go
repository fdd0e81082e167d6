package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Majulish/cookie/pkg/core/model"
)

// RegisterUserCmd creates the register-user command
func RegisterUserCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register-user <name>",
		Short: "Add a worker, HR manager or recruiter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, _ := cmd.Flags().GetString("id")
			email, _ := cmd.Flags().GetString("email")
			org, _ := cmd.Flags().GetString("org")
			role, _ := cmd.Flags().GetString("role")

			user, err := app.Staffing.RegisterUser(app.Ctx, model.User{
				ID:             id,
				Name:           args[0],
				Email:          email,
				OrganizationID: org,
				Role:           model.UserRole(role),
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Registered %s %s (%s)\n", user.Role, user.Name, user.ID)
			return nil
		},
	}
	cmd.Flags().String("id", "", "User ID (generated when empty)")
	cmd.Flags().String("email", "", "Email address for notification copies")
	cmd.Flags().String("org", "", "Organization ID")
	cmd.Flags().String("role", string(model.RoleWorker), "worker, hr_manager, recruiter or admin")
	return cmd
}

// ReviewCmd creates the review command
func ReviewCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "review <worker_id> <text>",
		Short: "Leave a review on a worker as the --as user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			review, err := app.Staffing.AddReview(app.Ctx, args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Review %s added for %s\n", review.ID, review.WorkerID)
			return nil
		},
	}
}

// ReviewsCmd creates the reviews command
func ReviewsCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reviews <worker_id>",
		Short: "Show the reviews left on a worker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reviews, err := app.Staffing.ListReviews(app.Ctx, args[0])
			if err != nil {
				return err
			}
			if len(reviews) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No reviews.")
				return nil
			}
			for _, r := range reviews {
				by := r.CommenterID
				if by == "" {
					by = "anonymous"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s: %s\n", r.CreatedAt.Format(displayTime), by, r.Text)
			}
			return nil
		},
	}
}

package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// MigrateCmd creates the migrate command
func MigrateCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.Postgres == nil {
				return fmt.Errorf("migrate needs store: postgres in the config")
			}
			if err := app.Postgres.RunMigrations(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✓ Database schema is up to date")
			return nil
		},
	}
}

package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Majulish/cookie/internal/config"
	"github.com/Majulish/cookie/pkg/utils"
)

// AuthorizeMailCmd creates the authorize-mail command
func AuthorizeMailCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "authorize-mail",
		Short: "Run the Gmail consent flow and store the token for this environment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if reset, _ := cmd.Flags().GetBool("reset"); reset {
				utils.ClearToken()
				if err := utils.DeleteTokenFile(app.Env); err != nil {
					return err
				}
			}

			oauthCfg, err := config.LoadOAuthClientWithEnv(app.Env)
			if err != nil {
				return err
			}
			oauthConfig, err := utils.GetOAuthConfig(oauthCfg)
			if err != nil {
				return err
			}
			if _, err := utils.GetTokenWithFlow(app.Ctx, oauthConfig, app.Env, app.Logger); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Mail delivery authorized for %s\n", app.Env)
			return nil
		},
	}
	cmd.Flags().Bool("reset", false, "Discard the stored token first")
	return cmd
}

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Majulish/cookie/cmd/cli/commands"
	"github.com/Majulish/cookie/internal/config"
	"github.com/Majulish/cookie/pkg/core/services"
	"github.com/Majulish/cookie/pkg/utils/logging"
)

var (
	env     string
	actor   string
	verbose bool
	app     = &commands.AppContext{}
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "staffing",
		Short: "Staff events and chase attendance confirmations",
		Long: `Create events and job slots, approve workers, and send reminders that
escalate to the HR manager when a worker does not confirm.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initApp()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if err := app.Close(); err != nil && app.Logger != nil {
				app.Logger.Warn("Failed to close connections", zap.Error(err))
			}
			if app.Logger != nil {
				app.Logger.Sync()
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&env, "env", "e", "", "Environment (required: test, prod, etc.)")
	rootCmd.PersistentFlags().StringVar(&actor, "as", "", "User ID performing the operation")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output to the console")
	rootCmd.MarkPersistentFlagRequired("env")

	rootCmd.AddCommand(commands.MigrateCmd(app))
	rootCmd.AddCommand(commands.RegisterUserCmd(app))
	rootCmd.AddCommand(commands.CreateEventCmd(app))
	rootCmd.AddCommand(commands.GetEventCmd(app))
	rootCmd.AddCommand(commands.ListEventsCmd(app))
	rootCmd.AddCommand(commands.UpdateEventCmd(app))
	rootCmd.AddCommand(commands.DefineSeriesCmd(app))
	rootCmd.AddCommand(commands.AddJobCmd(app))
	rootCmd.AddCommand(commands.SetEventStatusCmd(app))
	rootCmd.AddCommand(commands.DeleteEventCmd(app))
	rootCmd.AddCommand(commands.ApplyCmd(app))
	rootCmd.AddCommand(commands.SetStatusCmd(app))
	rootCmd.AddCommand(commands.RemoveCmd(app))
	rootCmd.AddCommand(commands.WorkersCmd(app))
	rootCmd.AddCommand(commands.ConfirmCmd(app))
	rootCmd.AddCommand(commands.NotificationsCmd(app))
	rootCmd.AddCommand(commands.MarkReadCmd(app))
	rootCmd.AddCommand(commands.ReviewCmd(app))
	rootCmd.AddCommand(commands.ReviewsCmd(app))
	rootCmd.AddCommand(commands.ServeCmd(app))
	rootCmd.AddCommand(commands.AuthorizeMailCmd(app))
	rootCmd.AddCommand(commands.InteractiveCmd(app))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// initApp sets up logger, config, store and timer queues
func initApp() error {
	logger, err := logging.InitLogger(logging.Options{Env: env, Verbose: verbose})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Info("Starting application", zap.String("environment", env))

	cfg, err := config.LoadWithEnv(env)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger.Debug("Configuration loaded",
		zap.String("store", cfg.Store),
		zap.String("timer_queue", cfg.TimerQueue),
		zap.String("locale", cfg.Locale))

	ctx := context.Background()
	if actor != "" {
		ctx = services.WithActor(ctx, actor)
	}

	built, err := commands.Build(ctx, cfg, env, logger)
	if err != nil {
		return err
	}
	*app = *built
	return nil
}

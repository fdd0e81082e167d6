package commands

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// ServeCmd creates the serve command
func ServeCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Dispatch reminders and escalation checks until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stop := make(chan os.Signal, 1)
			signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(stop)

			return serve(app.Ctx, app, stop)
		},
	}
}

func serve(ctx context.Context, app *AppContext, stop <-chan os.Signal) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	interval := app.Cfg.DispatchInterval
	batch := app.Cfg.DispatchBatch

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		app.Dispatcher.Run(ctx, interval, batch)
	}()
	go func() {
		defer wg.Done()
		app.Checks.Run(ctx, interval, batch)
	}()

	var server *http.Server
	serverErr := make(chan error, 1)
	if app.Cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", app.Metrics.Handler())
		server = &http.Server{Addr: app.Cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			app.Logger.Info("Serving metrics", zap.String("addr", app.Cfg.MetricsAddr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErr <- err
			}
		}()
	}

	var err error
	select {
	case sig := <-stop:
		app.Logger.Info("Shutting down", zap.String("signal", sig.String()))
	case <-ctx.Done():
	case err = <-serverErr:
		app.Logger.Error("Metrics server failed", zap.Error(err))
	}

	cancel()
	if server != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
			app.Logger.Warn("Metrics server shutdown failed", zap.Error(shutdownErr))
		}
	}
	wg.Wait()
	return err
}

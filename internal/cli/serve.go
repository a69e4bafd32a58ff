package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	api "github.com/fjod/go_cart/internal/http"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func serveCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := buildApp(ctx, cfg)
			if err != nil {
				return err
			}

			workerCtx, stopWorkers := context.WithCancel(ctx)
			defer stopWorkers()
			a.Start(workerCtx)

			srv := api.NewServer(":"+cfg.HTTP.Port, a.handler)
			errCh := make(chan error, 1)
			go func() {
				log.WithField("port", cfg.HTTP.Port).Info("storefront starting")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			// Graceful shutdown
			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			select {
			case <-quit:
			case err := <-errCh:
				stopWorkers()
				a.Close(context.Background())
				return err
			}

			log.Info("shutting down server...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.WithError(err).Error("server forced to shutdown")
			}
			stopWorkers()
			a.Close(shutdownCtx)
			log.Info("server exited")
			return nil
		},
	}
}

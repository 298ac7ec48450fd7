package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dgallion1/splitpdf/internal/api"
	"github.com/dgallion1/splitpdf/internal/metrics"
	"github.com/dgallion1/splitpdf/internal/pipeline"
	"github.com/spf13/cobra"
)

func newServeCommand(a *app) *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the split service over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := a.cfg
			cfg.Port = port
			if err := cfg.ValidateServer(); err != nil {
				return err
			}

			log, closeLog, err := a.logger(true)
			if err != nil {
				return err
			}
			defer closeLog()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			// Initialize pipeline.
			m := metrics.New()
			orch := pipeline.NewOrchestrator(cfg, a.fs, m, log)
			orch.Start(ctx)

			// Initialize HTTP server.
			srv := api.NewServer(orch, m, log, cfg)
			httpServer := &http.Server{
				Addr:         ":" + cfg.Port,
				Handler:      srv,
				ReadTimeout:  5 * time.Minute,
				WriteTimeout: 5 * time.Minute,
				IdleTimeout:  60 * time.Second,
			}

			// Graceful shutdown. In-flight uploads finish before the queue
			// is closed.
			shutdownDone := make(chan struct{})
			go func() {
				defer close(shutdownDone)
				<-ctx.Done()
				log.Info("shutting down...")

				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer shutdownCancel()
				if err := httpServer.Shutdown(shutdownCtx); err != nil {
					log.Warn("http shutdown", "error", err)
				}
			}()

			log.Info("starting splitpdf service", "port", cfg.Port, "work_dir", cfg.WorkDir, "config", cfg.String())
			err = httpServer.ListenAndServe()
			cancel()
			<-shutdownDone
			orch.Stop()
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("server error", "error", err)
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&port, "port", a.cfg.Port, "listen port")
	return cmd
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/icuwatch/mortalert/internal/engine"
	"github.com/icuwatch/mortalert/internal/logger"
	"github.com/icuwatch/mortalert/internal/notify"
	"github.com/icuwatch/mortalert/internal/server"
	"github.com/icuwatch/mortalert/internal/storage"
)

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			store, err := storage.New(cfg.Database.Path)
			if err != nil {
				return fmt.Errorf("failed to initialize storage: %w", err)
			}
			defer func() {
				if err := store.Close(); err != nil {
					logger.Error("Failed to close storage: %v", err)
				}
			}()

			notifier, err := notify.New(&cfg.Alerts)
			if err != nil {
				return fmt.Errorf("failed to initialize notifier: %w", err)
			}

			ctl, err := server.New(store, engine.New(store), notifier, cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize server: %w", err)
			}

			errCh := make(chan error, 1)
			go func() {
				if err := ctl.Start(cfg.Server.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()
			logger.Info("Listening on %s", cfg.Server.ListenAddr)

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

			select {
			case err := <-errCh:
				return fmt.Errorf("server stopped: %w", err)
			case sig := <-sigChan:
				logger.Info("Shutdown signal received (%v), cleaning up...", sig)
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := ctl.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("graceful shutdown failed: %w", err)
			}
			logger.Info("Service stopped")
			return nil
		},
	}
}

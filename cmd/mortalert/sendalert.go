package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/icuwatch/mortalert/internal/engine"
	"github.com/icuwatch/mortalert/internal/export"
	"github.com/icuwatch/mortalert/internal/logger"
	"github.com/icuwatch/mortalert/internal/notify"
	"github.com/icuwatch/mortalert/internal/storage"
)

func sendAlertCommand() *cobra.Command {
	var (
		modelID string
		endRaw  string
	)
	cmd := &cobra.Command{
		Use:   "send-alert",
		Short: "Evaluate a model and deliver the alert message",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			end, err := parsePeriodFlag(endRaw)
			if err != nil {
				return err
			}
			if modelID == "" {
				modelID = cfg.Alerts.DefaultModel
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

			eval, err := engine.New(store).Evaluate(cmd.Context(), modelID, end)
			if err != nil {
				return fmt.Errorf("evaluation failed: %w", err)
			}
			alerts, err := notify.FilterByDeathIncrease(cmd.Context(), store, eval.Alerts(), cfg.Alerts.MinDeathIncrease)
			if err != nil {
				return fmt.Errorf("delivery filter failed: %w", err)
			}

			notifier, err := notify.New(&cfg.Alerts)
			if err != nil {
				return fmt.Errorf("failed to initialize notifier: %w", err)
			}

			body := export.AlertMessage(eval.Model, eval.CurrentPeriod, alerts, time.Now())
			sendCtx, cancel := context.WithTimeout(cmd.Context(), cfg.Alerts.SendTimeout)
			defer cancel()
			if err := notifier.Send(sendCtx, body); err != nil {
				return fmt.Errorf("failed to send alert: %w", err)
			}
			logger.Info("Alert sent for %s: %d hospitals with alerts in %s",
				modelID, len(alerts), eval.CurrentPeriod.String())
			return nil
		},
	}
	cmd.Flags().StringVar(&modelID, "model", "", "Model to evaluate (defaults to alerts.default_model)")
	cmd.Flags().StringVar(&endRaw, "end", "", "Evaluate as of this period (YYYY-MM)")
	return cmd
}

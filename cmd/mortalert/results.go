package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/icuwatch/mortalert/internal/engine"
	"github.com/icuwatch/mortalert/internal/export"
	"github.com/icuwatch/mortalert/internal/logger"
	"github.com/icuwatch/mortalert/internal/storage"
)

func resultsCommand() *cobra.Command {
	var (
		modelID string
		endRaw  string
		asCSV   bool
	)
	cmd := &cobra.Command{
		Use:   "results",
		Short: "Evaluate a model and print the results",
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

			if asCSV {
				return export.WriteResults(cmd.OutOrStdout(), eval.Results)
			}
			out, err := json.MarshalIndent(eval, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode results: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
	cmd.Flags().StringVar(&modelID, "model", "", "Model to evaluate (defaults to alerts.default_model)")
	cmd.Flags().StringVar(&endRaw, "end", "", "Evaluate as of this period (YYYY-MM)")
	cmd.Flags().BoolVar(&asCSV, "csv", false, "Write CSV instead of JSON")
	return cmd
}

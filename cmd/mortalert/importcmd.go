package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/icuwatch/mortalert/internal/export"
	"github.com/icuwatch/mortalert/internal/logger"
	"github.com/icuwatch/mortalert/internal/storage"
)

func importCommand() *cobra.Command {
	var (
		recordsPath  string
		expectedPath string
	)
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load monthly mortality CSV files into storage",
		RunE: func(cmd *cobra.Command, args []string) error {
			if recordsPath == "" && expectedPath == "" {
				return errors.New("nothing to import: provide --records and/or --expected")
			}
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

			if recordsPath != "" {
				f, err := os.Open(recordsPath)
				if err != nil {
					return fmt.Errorf("failed to open records file: %w", err)
				}
				records, err := export.ReadMonthlyRecords(f)
				_ = f.Close()
				if err != nil {
					return fmt.Errorf("failed to parse %s: %w", recordsPath, err)
				}
				if err := store.UpsertMonthlyRecords(cmd.Context(), records); err != nil {
					return fmt.Errorf("failed to import records: %w", err)
				}
				logger.Info("Imported %d monthly records from %s", len(records), recordsPath)
			}

			if expectedPath != "" {
				f, err := os.Open(expectedPath)
				if err != nil {
					return fmt.Errorf("failed to open expected deaths file: %w", err)
				}
				infos, err := export.ReadExpectedDeaths(f)
				_ = f.Close()
				if err != nil {
					return fmt.Errorf("failed to parse %s: %w", expectedPath, err)
				}
				if err := store.UpsertExpectedDeaths(cmd.Context(), infos); err != nil {
					return fmt.Errorf("failed to import expected deaths: %w", err)
				}
				logger.Info("Imported %d expected death rows from %s", len(infos), expectedPath)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&recordsPath, "records", "", "CSV file of monthly mortality records")
	cmd.Flags().StringVar(&expectedPath, "expected", "", "CSV file of expected death percentages")
	return cmd
}

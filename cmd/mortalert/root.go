package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/icuwatch/mortalert/internal/config"
	"github.com/icuwatch/mortalert/internal/logger"
	"github.com/icuwatch/mortalert/internal/models"
)

var configPath string

func rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "mortalert",
		Short:         "Hospital mortality anomaly alerting",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "configs/config.yaml", "Path to configuration file")

	root.AddCommand(
		serveCommand(),
		sendAlertCommand(),
		modelsCommand(),
		resultsCommand(),
		importCommand(),
	)
	return root
}

// loadConfig reads and validates the configuration, then initializes the
// logger from it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Debug("Configuration loaded from %s", configPath)
	return cfg, nil
}

// parsePeriodFlag parses an optional YYYY-MM flag value.
func parsePeriodFlag(raw string) (*models.Period, error) {
	if raw == "" {
		return nil, nil
	}
	p, err := models.ParsePeriod(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid period %q: %w", raw, err)
	}
	return &p, nil
}

package cli

import (
	"fmt"

	"products-api/config"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "products-api",
	Short: "CRUD service for products backed by a relational store",
	Long: "products-api serves list/get/create/update/delete over HTTP for a single products table.\n" +
		"Create fails on purpose with a configurable probability so callers can exercise retries.",
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
}

// Execute runs the CLI
func Execute() error {
	return rootCmd.Execute()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Package cmd holds the storefront command line.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"shopdesk.io/app/internal/config"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "storefront",
	Short: "Storefront and back-office API",
	Long: `storefront serves the shop JSON API, the admin back office and the
payment provider callbacks, and runs the email outbox worker.

Configuration comes from config.yaml and STOREFRONT_* environment variables.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default: search ./deploy, ., $HOME/.storefront, /etc/storefront)")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

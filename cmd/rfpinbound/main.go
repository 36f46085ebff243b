package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nhle/rfp-inbound/internal/app"
	"github.com/nhle/rfp-inbound/internal/model"
)

var (
	configPath string
	logLevel   string
	dbPath     string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "rfpinbound",
		Short:         "Ingest vendor proposal replies from a mailbox",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", model.DefaultConfigPath(), "config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (error, warn, info, debug)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path")

	rootCmd.AddCommand(
		newSyncCmd(),
		newWatchCmd(),
		newServeCmd(),
		newReplayCmd(),
		newProposalsCmd(),
		newRunsCmd(),
		newVendorCmd(),
		newRequestCmd(),
		newCredentialCmd(),
		newConfigCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies command-line overrides.
func loadConfig() (*model.AppConfig, error) {
	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if dbPath != "" {
		cfg.DB.Path = dbPath
	}
	return cfg, nil
}

// openApp loads configuration and wires the pipeline.
func openApp(opts app.Options) (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return app.New(cfg, opts)
}

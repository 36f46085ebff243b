package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nhle/rfp-inbound/internal/model"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or initialise the configuration file",
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the effective configuration, without secrets, to the config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := model.SaveConfig(configPath, cfg); err != nil {
				return err
			}
			fmt.Printf("Configuration written to %s\n", configPath)
			return nil
		},
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			fmt.Printf("imap:    %s@%s:%d (tls=%v) mailbox=%s password set=%v\n",
				cfg.IMAP.Username, cfg.IMAP.Host, cfg.IMAP.Port, cfg.IMAP.TLS,
				cfg.IMAP.Mailbox, cfg.IMAP.Password != "")
			fmt.Printf("extract: %s model=%s api key set=%v\n",
				cfg.Extract.BaseURL, cfg.Extract.Model, cfg.Extract.APIKey != "")
			fmt.Printf("db:      %s\n", cfg.DB.Path)
			fmt.Printf("server:  :%d\n", cfg.Server.Port)
			fmt.Printf("watch:   every %ds\n", cfg.Watch.IntervalSec)
			fmt.Printf("log:     %s\n", cfg.Log.Level)
			return nil
		},
	}

	cmd.AddCommand(initCmd, show)
	return cmd
}

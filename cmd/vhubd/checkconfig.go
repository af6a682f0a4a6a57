package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"vhub/internal/config"
)

func newCheckConfigCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "check-config",
		Short: "Load and validate the configuration file without starting the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			fmt.Printf("config OK: hub=%q listen=%s max_users=%d\n", cfg.Hub.Name, cfg.Listen.Addr, cfg.Hub.MaxUsers)
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to hub.yaml (default search paths if empty)")
	return cmd
}

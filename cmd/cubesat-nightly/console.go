package main

import (
	"github.com/spf13/cobra"

	"cubesat-nightly/internal/console"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Browse run history in a terminal UI",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return console.Run(cfg)
	},
}

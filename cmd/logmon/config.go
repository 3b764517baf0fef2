package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:     "config",
	GroupID: "inspect",
	Short:   "Print the effective configuration as YAML",
	Long: `Print the configuration logmon would run with, after merging
defaults, the config file, environment variables and flags.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd)

		out, err := cfg.YAML()
		if err != nil {
			exitf("Error: %v\n", err)
		}
		fmt.Print(out)
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}

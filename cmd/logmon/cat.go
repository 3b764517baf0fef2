package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentlogs/logmon/internal/logging"
	"github.com/agentlogs/logmon/internal/roots"
	"github.com/agentlogs/logmon/internal/scanner"
)

var catCmd = &cobra.Command{
	Use:     "cat <file>",
	GroupID: "inspect",
	Short:   "Print a log file, or its last N lines",
	Long: `Print the content of a log file by its identifier, the path relative
to its root as shown by 'logmon list'.

Examples:
  logmon cat session-1/log.json
  logmon cat team/inboxes/lead.json --lines 20`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd)
		lines, _ := cmd.Flags().GetInt("lines")

		resolver, err := roots.NewResolver(cfg.Roots)
		if err != nil {
			exitf("Error: %v\n", err)
		}
		scan := scanner.New(resolver, logging.L().Named("scanner"))

		content, err := scan.ReadFile(args[0], lines)
		switch {
		case errors.Is(err, scanner.ErrNotFound):
			exitf("Error: %s not found under %v\n", args[0], resolver.Roots())
		case err != nil:
			exitf("Error: %v\n", err)
		}

		fmt.Fprint(os.Stdout, content)
		if lines > 0 && content != "" {
			fmt.Fprintln(os.Stdout)
		}
	},
}

func init() {
	catCmd.Flags().IntP("lines", "n", 0, "Only print the last N lines (0 prints everything)")

	rootCmd.AddCommand(catCmd)
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentlogs/logmon/internal/logging"
	"github.com/agentlogs/logmon/internal/roots"
	"github.com/agentlogs/logmon/internal/scanner"
	"github.com/agentlogs/logmon/internal/ui"
)

var listCmd = &cobra.Command{
	Use:     "list",
	GroupID: "inspect",
	Short:   "List log files under the watched roots",
	Long: `List every log file under the configured roots, newest first.

Examples:
  logmon list
  logmon list --since 2h
  logmon list --since "yesterday" --json`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd)
		sinceExpr, _ := cmd.Flags().GetString("since")
		jsonOutput, _ := cmd.Flags().GetBool("json")

		since, err := scanner.ParseSince(sinceExpr, time.Now())
		if err != nil {
			exitf("Error: %v\n", err)
		}

		resolver, err := roots.NewResolver(cfg.Roots)
		if err != nil {
			exitf("Error: %v\n", err)
		}
		scan := scanner.New(resolver, logging.L().Named("scanner"))

		files, err := scan.List(context.Background(), scanner.ListOptions{Since: since})
		if err != nil {
			exitf("Error listing logs: %v\n", err)
		}

		if jsonOutput {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(files); err != nil {
				exitf("Error encoding JSON: %v\n", err)
			}
			return
		}

		if len(files) == 0 {
			fmt.Printf("%s No log files found\n", ui.RenderWarn("⚠"))
			return
		}

		idWidth := len("FILE")
		for _, f := range files {
			if len(f.ID) > idWidth {
				idWidth = len(f.ID)
			}
		}

		fmt.Printf("%s  %s  %s\n",
			ui.PadRight(ui.RenderHeader("FILE"), idWidth),
			ui.PadRight(ui.RenderHeader("SIZE"), 10),
			ui.RenderHeader("MODIFIED"))
		for _, f := range files {
			fmt.Printf("%s  %s  %s\n",
				ui.PadRight(ui.RenderPath(f.ID), idWidth),
				ui.PadRight(ui.FormatSize(f.Size), 10),
				ui.RenderMuted(f.Modified.Local().Format(time.DateTime)))
		}
		fmt.Printf("\n%d file(s)\n", len(files))
	},
}

func init() {
	listCmd.Flags().String("since", "", "Only files modified since (RFC3339, duration like 90m, or \"2 hours ago\")")
	listCmd.Flags().Bool("json", false, "Output JSON")

	rootCmd.AddCommand(listCmd)
}

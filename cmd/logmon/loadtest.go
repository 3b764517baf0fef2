package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentlogs/logmon/internal/dashboard"
	"github.com/agentlogs/logmon/internal/loadtest"
	"github.com/agentlogs/logmon/internal/logging"
	"github.com/agentlogs/logmon/internal/ui"
)

var loadtestCmd = &cobra.Command{
	Use:     "loadtest",
	GroupID: "server",
	Short:   "Measure broadcast latency with many concurrent subscribers",
	Long: `Connect many subscribers to a running logmon hub and report delivery
latency, the time between a message's timestamp and its arrival.

With --write-file, a line is appended to the given file every
--write-interval so the run exercises change detection as well. The file
must live under a root the server watches.

Examples:
  logmon loadtest --clients 100 --duration 30s
  logmon loadtest --url ws://host:3001/ws --write-file ~/.claude/tasks/load/run.json`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd)

		url, _ := cmd.Flags().GetString("url")
		clients, _ := cmd.Flags().GetInt("clients")
		duration, _ := cmd.Flags().GetDuration("duration")
		writeFile, _ := cmd.Flags().GetString("write-file")
		writeInterval, _ := cmd.Flags().GetDuration("write-interval")
		if url == "" {
			url = fmt.Sprintf("ws://localhost:%d/ws", cfg.Port)
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		fmt.Printf("%s Connecting %d subscribers to %s for %v...\n", ui.RenderAccent("→"), clients, url, duration)
		result, err := loadtest.Run(ctx, loadtest.Config{
			URL:           url,
			Clients:       clients,
			Duration:      duration,
			WriteFile:     writeFile,
			WriteInterval: writeInterval,
			Logger:        logging.L().Named("loadtest"),
		})
		if err != nil {
			exitf("Load test failed: %v\n", err)
		}

		fmt.Printf("\n%s %d/%d subscribers connected\n", ui.RenderPass("✓"), result.Connected, clients)
		if writeFile != "" {
			fmt.Printf("   Lines written: %d\n", result.LinesWritten)
		}

		types := make([]dashboard.MessageType, 0, len(result.ByType))
		for typ := range result.ByType {
			types = append(types, typ)
		}
		sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
		fmt.Println("   Messages by type:")
		for _, typ := range types {
			fmt.Printf("     %-12s %d\n", typ, result.ByType[typ])
		}
		fmt.Println()

		result.Stats.PrintStats(os.Stdout)
		if result.Stats.Errors > 0 {
			fmt.Printf("\n%s %d subscriber errors\n", ui.RenderWarn("⚠"), result.Stats.Errors)
		}
	},
}

func init() {
	loadtestCmd.Flags().String("url", "", "Hub WebSocket URL (default: ws://localhost:<port>/ws)")
	loadtestCmd.Flags().Int("clients", 10, "Number of concurrent subscribers")
	loadtestCmd.Flags().Duration("duration", 10*time.Second, "How long to run")
	loadtestCmd.Flags().String("write-file", "", "Append a line to this file every --write-interval")
	loadtestCmd.Flags().Duration("write-interval", 50*time.Millisecond, "Interval between appended lines")

	rootCmd.AddCommand(loadtestCmd)
}

// Command logmon watches agent log directories and streams changes to
// dashboard subscribers.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentlogs/logmon/internal/config"
	"github.com/agentlogs/logmon/internal/logging"
	"github.com/agentlogs/logmon/internal/ui"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "logmon",
	Short: "Real-time monitor for agent task and team logs",
	Long: `logmon watches one or more root directories of agent log files and
streams additions, appended content and deletions to WebSocket subscribers.

Only the bytes appended since the last delivery are sent for append-only
logs. Structured files (inboxes by default) are re-sent whole on change.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "server", Title: "Server Commands:"},
		&cobra.Group{ID: "inspect", Title: "Inspection Commands:"},
	)

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: ./logmon.yaml or ~/.config/logmon/logmon.yaml)")
	rootCmd.PersistentFlags().StringSlice("root", nil, "Root directory to watch (repeatable)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
}

// loadConfig loads configuration with cmd's flags bound over it and
// initializes the global logger.
func loadConfig(cmd *cobra.Command) *config.Config {
	cfg, err := config.Load(configPath, cmd.Flags())
	if err != nil {
		exitf("Error: %v\n", err)
	}
	logging.Init(cfg.Log)
	return cfg
}

func exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s "+format, append([]any{ui.RenderFail("✗")}, args...)...)
	os.Exit(1)
}

func main() {
	err := rootCmd.Execute()
	_ = logging.Sync()
	if err != nil {
		os.Exit(1)
	}
}

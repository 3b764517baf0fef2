package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/agentlogs/logmon/internal/config"
	"github.com/agentlogs/logmon/internal/daemon"
	"github.com/agentlogs/logmon/internal/dashboard"
	"github.com/agentlogs/logmon/internal/logging"
	"github.com/agentlogs/logmon/internal/roots"
	"github.com/agentlogs/logmon/internal/scanner"
	"github.com/agentlogs/logmon/internal/ui"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	GroupID: "server",
	Short:   "Watch the log roots and serve the real-time dashboard hub",
	Long: `Start the change watcher, the update pipeline and the dashboard server.

Subscribers connect to ws://<host>:<port>/ws and receive:
- connected:   welcome message with the subscriber id
- log:new:     a log file appeared
- log:update:  appended bytes (or the whole file for structured files)
- log:delete:  a log file was removed
- logs:list:   reply to a request:logs message

HTTP endpoints:
  GET /api/logs[?since=2h]      list log files, newest first
  GET /api/logs/<id>[?lines=N]  read a file or its last N lines
  GET /api/health               liveness and subscriber count
  GET /metrics                  Prometheus metrics

Example usage:
  logmon serve                             # Watch ~/.claude/tasks and ~/.claude/teams on :3001
  logmon serve --port 9000 --root ./logs   # Custom port and root
  logmon serve --watch-backend fsnotify    # Native file events instead of polling`,
	Run: runServe,
}

func init() {
	serveCmd.Flags().IntP("port", "p", 3001, "Port to listen on")
	serveCmd.Flags().String("bind", "", "Address to bind (default: all interfaces)")
	serveCmd.Flags().String("cors-origin", "", "Allowed CORS / WebSocket origin (default: *)")
	serveCmd.Flags().String("watch-backend", "", "Change watcher backend: poll or fsnotify")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) {
	cfg := loadConfig(cmd)
	logger := logging.L()

	resolver, err := roots.NewResolver(cfg.Roots)
	if err != nil {
		exitf("Error: %v\n", err)
	}
	scan := scanner.New(resolver, logger.Named("scanner"))

	watcher, err := daemon.NewWatcher(cfg.Watch.Backend, resolver, &daemon.WatchConfig{
		Pattern:  cfg.Watch.Pattern,
		Interval: cfg.Watch.Interval,
		Logger:   logger.Named("watcher"),
	})
	if err != nil {
		exitf("Error: failed to create watcher: %v\n", err)
	}

	server := dashboard.NewServer(&dashboard.Config{
		Bind:            cfg.Bind,
		Port:            cfg.Port,
		CORSOrigin:      cfg.CORSOrigin,
		ClientBuffer:    cfg.Hub.ClientBuffer,
		BroadcastBuffer: cfg.Hub.BroadcastBuffer,
		RequestRate:     cfg.Hub.RequestRate,
		RequestBurst:    cfg.Hub.RequestBurst,
		Lister:          scan,
		Reader:          scan,
		Logger:          logger.Named("dashboard"),
	})

	d, err := daemon.NewWithConfig(watcher, dashboard.NewHandler(server, logger.Named("dashboard")), &daemon.Config{
		Workers:    cfg.Pipeline.Workers,
		QueueSize:  cfg.Pipeline.QueueSize,
		Classifier: daemon.NewClassifier(cfg.Classify.Structured),
		Logger:     logger.Named("daemon"),
	})
	if err != nil {
		exitf("Error: %v\n", err)
	}

	if err := server.Start(); err != nil {
		exitf("Error: failed to start dashboard: %v\n", err)
	}

	watching, err := config.Watch(configPath, cmd.Flags(), func(next *config.Config) {
		logging.SetLevel(next.Log.Level)
		logger.Info("Configuration reloaded, log level applied; other changes need a restart",
			zap.String("log_level", next.Log.Level))
	}, func(err error) {
		logger.Warn("Ignoring invalid configuration change", zap.Error(err))
	})
	if err != nil {
		logger.Warn("Failed to watch configuration file", zap.Error(err))
	}

	addr := server.GetAddr()
	fmt.Printf("%s logmon listening on http://%s\n", ui.RenderPass("✓"), addr)
	fmt.Printf("   WebSocket: ws://%s/ws\n", addr)
	fmt.Printf("   Watching:  %s\n", ui.RenderPath(strings.Join(resolver.Roots(), ", ")))
	fmt.Printf("   Backend:   %s\n", cfg.Watch.Backend)
	if watching {
		fmt.Printf("   Reloading: log level on config change\n")
	}
	fmt.Println(ui.RenderMuted("\nPress Ctrl+C to stop..."))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Start blocks until the signal, then stops the watcher and drains the
	// pipeline. Subscribers and HTTP are closed after that.
	derr := d.Start(ctx)
	if derr != nil {
		logger.Error("Daemon stopped with error", zap.Error(derr))
	}

	fmt.Println("\nShutting down dashboard server...")
	if err := server.Stop(); err != nil {
		exitf("Error during shutdown: %v\n", err)
	}
	if derr != nil {
		exitf("Error: %v\n", derr)
	}

	fmt.Printf("%s Stopped\n", ui.RenderPass("✓"))
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/mschirtzinger/userlist/internal/daemon"
	"github.com/mschirtzinger/userlist/internal/dashboard"
	"github.com/mschirtzinger/userlist/internal/eventloop"
	"github.com/mschirtzinger/userlist/internal/ui"
	"github.com/mschirtzinger/userlist/internal/viewmodel"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var daemonCmd = &cobra.Command{
	Use:     "daemon",
	GroupID: "sync",
	Short:   "Run the sync daemon with its dashboard (foreground)",
	Long: `Start the sync daemon in foreground mode.

The daemon will:
  1. Sync once at startup
  2. Sync again every sync.interval
  3. Sync immediately when the config file changes
  4. Serve the dashboard with live sync events and the current rows

Press Ctrl+C to stop. A cycle in flight is cancelled and its result dropped.`,
	RunE: runDaemon,
}

func init() {
	daemonCmd.Flags().Duration("interval", 0, "Sync interval (default: sync.interval)")
	daemonCmd.Flags().IntP("port", "p", -1, "Dashboard port (default: dashboard.port)")
	daemonCmd.Flags().Bool("no-dashboard", false, "Do not serve the dashboard")
	rootCmd.AddCommand(daemonCmd)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	interval, _ := cmd.Flags().GetDuration("interval")
	if interval <= 0 {
		interval = cfg.Sync.Interval
	}
	port, _ := cmd.Flags().GetInt("port")
	if port < 0 {
		port = cfg.Dashboard.Port
	}
	noDashboard, _ := cmd.Flags().GetBool("no-dashboard")

	database, err := openStore()
	if err != nil {
		return err
	}
	defer database.Close()

	// Consumer goroutine for every observer callback
	loop := eventloop.New(logger.With("component", "loop"))
	loop.Start(context.Background())
	defer func() {
		loop.Stop()
		<-loop.Done()
	}()

	handle := viewmodel.NewWithConfig(database, newFetcher(), loop, &viewmodel.Config{
		MaxPages: cfg.GitHub.MaxPages,
		Logger:   logger.With("component", "viewmodel"),
	})

	daemonConfig := &daemon.Config{
		Interval: interval,
		Logger:   logger.With("component", "daemon"),
	}
	if path := cfg.Path(); path != "" {
		daemonConfig.WatchFiles = []string{path}
	}

	d, err := daemon.NewWithConfig(handle, loop, daemonConfig)
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}
	defer d.Stop()

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	fmt.Printf("%s Starting sync daemon...\n", ui.RenderAccent("🚀"))
	fmt.Printf("   Interval: %s\n", interval)
	fmt.Printf("   Cache: %s\n", database.Path())
	if len(daemonConfig.WatchFiles) > 0 {
		fmt.Printf("   Watching: %s\n", daemonConfig.WatchFiles[0])
	}

	if !noDashboard {
		server := dashboard.NewServer(&dashboard.Config{
			Host:   cfg.Dashboard.Host,
			Port:   port,
			Status: func() any { return d.Status() },
			Logger: logger.With("component", "dashboard"),
		})
		d.Subscribe(dashboard.NewHandler(server, loop, logger.With("component", "dashboard")))

		if err := server.Start(); err != nil {
			return fmt.Errorf("failed to start dashboard: %w", err)
		}
		fmt.Printf("   Dashboard: http://%s\n", server.GetAddr())
		fmt.Printf("   WebSocket: ws://%s/ws\n", server.GetAddr())

		g.Go(func() error {
			<-gctx.Done()
			return server.Stop()
		})
	}

	fmt.Printf("\nPress Ctrl+C to stop\n\n")

	g.Go(func() error {
		return d.Start(gctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("daemon stopped with error: %w", err)
	}

	status := d.Status()
	fmt.Printf("\n%s Daemon stopped after %d syncs (%d failed)\n", ui.RenderPass("✓"), status.Syncs, status.Failures)
	return nil
}

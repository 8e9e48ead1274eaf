package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/mschirtzinger/userlist/internal/dashboard"
	"github.com/mschirtzinger/userlist/internal/eventloop"
	"github.com/mschirtzinger/userlist/internal/listvm"
	"github.com/spf13/cobra"
)

var dashboardCmd = &cobra.Command{
	Use:     "dashboard",
	GroupID: "advanced",
	Short:   "Serve the local cache over HTTP without syncing",
	Long: `Start the dashboard server over the current local cache.

Unlike 'userlist daemon', this does not contact GitHub: it opens one
snapshot of the local cache and serves it until stopped.

Endpoints:
  GET /rows?start=0&n=50   JSON window of the snapshot
  GET /health              server health
  GET /ws                  WebSocket (sends a status message on connect)

Example usage:
  userlist dashboard                   # Start on dashboard.port
  userlist dashboard --port 9000       # Start on custom port`,
	RunE: runDashboard,
}

func init() {
	dashboardCmd.Flags().IntP("port", "p", -1, "Port to listen on (default: dashboard.port)")
	rootCmd.AddCommand(dashboardCmd)
}

func runDashboard(cmd *cobra.Command, args []string) error {
	port, _ := cmd.Flags().GetInt("port")
	if port < 0 {
		port = cfg.Dashboard.Port
	}

	database, err := openStore()
	if err != nil {
		return err
	}
	defer database.Close()

	loop := eventloop.New(logger.With("component", "loop"))
	loop.Start(context.Background())
	defer func() {
		loop.Stop()
		<-loop.Done()
	}()

	snap, err := database.OpenSnapshot(cmd.Context())
	if err != nil {
		return err
	}
	cache := listvm.New(snap, snap)

	var rows int32
	server := dashboard.NewServer(&dashboard.Config{
		Host:   cfg.Dashboard.Host,
		Port:   port,
		Status: func() any { return map[string]any{"state": "serving", "rows": rows} },
		Logger: logger.With("component", "dashboard"),
	})
	handler := dashboard.NewHandler(server, loop, logger.With("component", "dashboard"))

	if err := loop.Call(cmd.Context(), func() {
		handler.OnUpdate(cache)
		rows, _ = cache.Count()
	}); err != nil {
		_ = cache.Close()
		return err
	}
	// The snapshot is released on the loop after the server is down
	defer loop.Post(func() { _ = cache.Close() })

	if err := server.Start(); err != nil {
		return fmt.Errorf("failed to start dashboard: %w", err)
	}

	fmt.Printf("Dashboard server started on http://%s\n", server.GetAddr())
	fmt.Printf("Rows: http://%s/rows\n", server.GetAddr())
	fmt.Printf("Health check: http://%s/health\n", server.GetAddr())
	fmt.Println("\nPress Ctrl+C to stop...")

	// Wait for interrupt signal
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	<-ctx.Done()

	// Graceful shutdown
	fmt.Println("\nShutting down dashboard server...")
	if err := server.Stop(); err != nil {
		return fmt.Errorf("error during shutdown: %w", err)
	}

	fmt.Println("Dashboard server stopped")
	return nil
}

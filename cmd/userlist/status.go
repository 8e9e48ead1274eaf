package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/mschirtzinger/userlist/internal/daemon"
	"github.com/mschirtzinger/userlist/internal/ui"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: "view",
	Short:   "Show local cache and daemon status",
	Long: `Display the state of the local cache.

Shows:
  - Cache file location, size and modification time
  - Number of cached users
  - Sync activity of a running daemon, read from its dashboard /health endpoint`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().String("format", "text", "Output format: text or yaml")
	rootCmd.AddCommand(statusCmd)
}

// statusReport is the combined status printed by `userlist status`.
type statusReport struct {
	Config   string         `yaml:"config,omitempty"`
	Database string         `yaml:"database"`
	Size     int64          `yaml:"size_bytes"`
	Modified time.Time      `yaml:"modified,omitempty"`
	Users    int            `yaml:"users"`
	Daemon   *daemon.Status `yaml:"daemon,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	if format != "text" && format != "yaml" {
		return fmt.Errorf("--format must be 'text' or 'yaml'")
	}

	report := statusReport{
		Config:   cfg.Path(),
		Database: cfg.Database.Path,
	}

	info, err := os.Stat(cfg.Database.Path)
	if os.IsNotExist(err) {
		if format == "yaml" {
			return writeYAML(report)
		}
		fmt.Printf("\n%s Local cache not initialized\n", ui.RenderWarn("⚠"))
		fmt.Printf("   Run 'userlist sync' to create the cache\n\n")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to check cache: %w", err)
	}
	report.Size = info.Size()
	report.Modified = info.ModTime()

	database, err := openStore()
	if err != nil {
		return err
	}
	defer database.Close()

	report.Users, err = database.UserCount(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to count users: %w", err)
	}

	report.Daemon = fetchDaemonStatus(cmd.Context())

	if format == "yaml" {
		return writeYAML(report)
	}

	printStatus(report)
	return nil
}

func writeYAML(v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode yaml: %w", err)
	}
	_, err = os.Stdout.Write(data)
	return err
}

// fetchDaemonStatus asks a local daemon's dashboard for its sync status. It
// returns nil when no daemon answers.
func fetchDaemonStatus(ctx context.Context) *daemon.Status {
	host := cfg.Dashboard.Host
	if host == "" {
		host = "localhost"
	}
	url := "http://" + net.JoinHostPort(host, strconv.Itoa(cfg.Dashboard.Port)) + "/health"

	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		logger.Debug("no daemon reachable", "url", url, "error", err)
		return nil
	}
	defer resp.Body.Close()

	var body struct {
		Sync *daemon.Status `json:"sync"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		logger.Debug("unexpected health response", "url", url, "error", err)
		return nil
	}
	return body.Sync
}

func printStatus(r statusReport) {
	sizeStr := fmt.Sprintf("%d bytes", r.Size)
	if r.Size > 1024*1024 {
		sizeStr = fmt.Sprintf("%.1f MB", float64(r.Size)/(1024*1024))
	} else if r.Size > 1024 {
		sizeStr = fmt.Sprintf("%.1f KB", float64(r.Size)/1024)
	}

	configStr := r.Config
	if configStr == "" {
		configStr = "(defaults)"
	}

	fmt.Printf("\n%s %s\n\n", ui.RenderAccent("📊"), ui.RenderTitle("Local Cache Status"))
	ui.KeyValue(os.Stdout,
		"Config", configStr,
		"Location", r.Database,
		"Size", sizeStr,
		"Users", strconv.Itoa(r.Users),
		"Modified", r.Modified.Format("2006-01-02 15:04:05"),
	)

	if r.Daemon == nil {
		fmt.Printf("\n%s No daemon running\n\n", ui.LabelStyle.Render("○"))
		return
	}

	lastSync := "never"
	if !r.Daemon.LastSync.IsZero() {
		lastSync = r.Daemon.LastSync.Format("2006-01-02 15:04:05")
	}

	fmt.Printf("\n%s %s\n\n", ui.RenderPass("●"), ui.RenderTitle("Daemon"))
	ui.KeyValue(os.Stdout,
		"State", r.Daemon.State,
		"Syncs", strconv.Itoa(r.Daemon.Syncs),
		"Failures", strconv.Itoa(r.Daemon.Failures),
		"Skipped", strconv.Itoa(r.Daemon.Skipped),
		"Rows", strconv.Itoa(int(r.Daemon.Rows)),
		"Last sync", lastSync,
	)
	if r.Daemon.LastError != "" {
		fmt.Printf("  %s\n", ui.RenderFail("last error: "+r.Daemon.LastError))
	}
	fmt.Println()
}

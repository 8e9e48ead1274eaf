package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mschirtzinger/userlist/internal/config"
	"github.com/mschirtzinger/userlist/internal/logging"
	"github.com/mschirtzinger/userlist/internal/remote/github"
	"github.com/mschirtzinger/userlist/internal/store"
	"github.com/mschirtzinger/userlist/internal/ui"
	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags
var Version = "dev"

// skipConfigAnnotation marks commands that run without loading the config.
const skipConfigAnnotation = "skip-config"

var (
	configPath string

	cfg       *config.Config
	logger    *slog.Logger
	logCloser io.Closer
)

var rootCmd = &cobra.Command{
	Use:     "userlist",
	Short:   "Browse a local, incrementally synced copy of the GitHub user list",
	Version: Version,
	Long: `userlist keeps a local SQLite copy of the GitHub user listing and serves
consistent, lazily loaded snapshots of it.

Each sync fetches the remote pages, merges them into the local cache in one
transaction, and publishes an immutable snapshot for reading.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		ui.Init()

		if cmd.Annotations[skipConfigAnnotation] == "true" {
			logger = logging.NullLogger()
			return nil
		}

		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		logger, logCloser, err = logging.SetupLogger(&cfg.Logging)
		if err != nil {
			// Fall back to stderr if file logging fails
			fmt.Fprintf(os.Stderr, "%s %v\n", ui.RenderWarn("⚠"), err)
			logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
		}
		slog.SetDefault(logger)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			_ = logCloser.Close()
		}
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: ~/.config/userlist/userlist.{yaml,toml} or ./userlist.yaml)")

	rootCmd.AddGroup(
		&cobra.Group{ID: "sync", Title: "Sync Commands:"},
		&cobra.Group{ID: "view", Title: "Viewing Commands:"},
		&cobra.Group{ID: "advanced", Title: "Advanced Commands:"},
		&cobra.Group{ID: "maint", Title: "Maintenance Commands:"},
	)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// openStore opens the configured database, creating its schema if needed.
func openStore() (*store.DB, error) {
	database, err := store.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	if err := database.InitSchema(); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return database, nil
}

// newFetcher builds the GitHub client from the configuration.
func newFetcher() *github.Client {
	return github.NewClient(github.Config{
		BaseURL:           cfg.GitHub.BaseURL,
		Token:             cfg.GitHub.Token,
		PerPage:           cfg.GitHub.PerPage,
		RequestsPerSecond: cfg.GitHub.RequestsPerSecond,
		Logger:            logger.With("component", "github"),
	})
}

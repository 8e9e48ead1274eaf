package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/mschirtzinger/userlist/internal/config"
	"github.com/mschirtzinger/userlist/internal/ui"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:     "config",
	GroupID: "maint",
	Short:   "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a default configuration file",
	Long: `Write the default configuration as TOML.

The file goes to ~/.config/userlist/userlist.toml unless a path is given.
With --interactive, prompts for the most common settings first.
Every key can also be overridden with a USERLIST_ environment variable,
e.g. USERLIST_GITHUB_TOKEN or USERLIST_SYNC_INTERVAL.`,
	Args:        cobra.MaximumNArgs(1),
	Annotations: map[string]string{skipConfigAnnotation: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		interactive, _ := cmd.Flags().GetBool("interactive")

		path := config.DefaultConfigFile()
		if len(args) == 1 {
			path = args[0]
		}

		c := config.DefaultConfig()
		if interactive {
			if err := promptConfig(c); err != nil {
				return err
			}
		}

		if err := config.Write(path, c, force); err != nil {
			return err
		}
		fmt.Printf("%s Wrote %s\n", ui.RenderPass("✓"), path)
		return nil
	},
}

func init() {
	configInitCmd.Flags().Bool("force", false, "Overwrite an existing file")
	configInitCmd.Flags().BoolP("interactive", "i", false, "Prompt for settings")
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}

// promptConfig asks for the settings most users change and stores the
// answers in c.
func promptConfig(c *config.Config) error {
	interval := c.Sync.Interval.String()
	port := strconv.Itoa(c.Dashboard.Port)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("GitHub API URL").
				Value(&c.GitHub.BaseURL),
			huh.NewInput().
				Title("GitHub token").
				Description("Optional. Raises the API rate limit.").
				EchoMode(huh.EchoModePassword).
				Value(&c.GitHub.Token),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Database path").
				Value(&c.Database.Path),
			huh.NewInput().
				Title("Daemon sync interval").
				Value(&interval).
				Validate(func(s string) error {
					d, err := time.ParseDuration(s)
					if err != nil || d <= 0 {
						return fmt.Errorf("enter a positive duration such as 5m")
					}
					return nil
				}),
			huh.NewInput().
				Title("Dashboard port").
				Value(&port).
				Validate(func(s string) error {
					n, err := strconv.Atoi(s)
					if err != nil || n < 0 || n > 65535 {
						return fmt.Errorf("enter a port between 0 and 65535")
					}
					return nil
				}),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("config prompt cancelled: %w", err)
	}

	// Both were validated by the form
	c.Sync.Interval, _ = time.ParseDuration(interval)
	c.Dashboard.Port, _ = strconv.Atoi(port)
	return c.Validate()
}

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mschirtzinger/userlist/internal/loadtest"
	"github.com/mschirtzinger/userlist/internal/ui"
	"github.com/spf13/cobra"
)

var loadtestCmd = &cobra.Command{
	Use:     "loadtest",
	GroupID: "maint",
	Short:   "Measure snapshot read latency under concurrent views",
	Long: `Populate a scratch database with synthetic users and scroll many list
views over it concurrently, reporting Get and Count latency.

With --consistency, a writer keeps merging while readers verify that every
snapshot yields exactly the rows it counted.

Examples:
  # Default workload (10 readers, 10000 users)
  userlist loadtest

  # 100 readers over 50000 users
  userlist loadtest --readers 100 --users 50000

  # Consistency check for 10 seconds
  userlist loadtest --consistency 10s
`,
	RunE: runLoadtest,
}

func init() {
	defaults := loadtest.DefaultScrollOptions()
	loadtestCmd.Flags().Int("users", 10000, "Number of synthetic users")
	loadtestCmd.Flags().Int("readers", defaults.Readers, "Number of concurrent views")
	loadtestCmd.Flags().Int("page-size", defaults.PageSize, "Rows read per scroll step")
	loadtestCmd.Flags().Int("steps", defaults.Steps, "Scroll steps per view")
	loadtestCmd.Flags().Float64("jump", defaults.JumpPct, "Chance of jumping to a random row per step (0.0-1.0)")
	loadtestCmd.Flags().Duration("consistency", 0, "Run the snapshot consistency check for this long instead")
	loadtestCmd.Flags().String("db", "", "Scratch database path (default: temporary file)")
	rootCmd.AddCommand(loadtestCmd)
}

func runLoadtest(cmd *cobra.Command, args []string) error {
	users, _ := cmd.Flags().GetInt("users")
	readers, _ := cmd.Flags().GetInt("readers")
	pageSize, _ := cmd.Flags().GetInt("page-size")
	steps, _ := cmd.Flags().GetInt("steps")
	jump, _ := cmd.Flags().GetFloat64("jump")
	consistency, _ := cmd.Flags().GetDuration("consistency")
	dbPath, _ := cmd.Flags().GetString("db")

	// Validate flags
	if users <= 0 {
		return fmt.Errorf("--users must be positive")
	}
	if jump < 0 || jump > 1 {
		return fmt.Errorf("--jump must be between 0.0 and 1.0")
	}

	if dbPath == "" {
		dir, err := os.MkdirTemp("", "userlist-loadtest-")
		if err != nil {
			return fmt.Errorf("failed to create scratch directory: %w", err)
		}
		defer os.RemoveAll(dir)
		dbPath = filepath.Join(dir, "loadtest.db")
	}

	fmt.Printf("%s Creating test database with %d users...\n", ui.RenderAccent("⚙"), users)
	start := time.Now()
	td, err := loadtest.CreateTestDatabase(dbPath, users)
	if err != nil {
		return err
	}
	defer td.Close()
	fmt.Printf("   Done in %v\n\n", time.Since(start).Round(time.Millisecond))

	if consistency > 0 {
		fmt.Printf("Verifying snapshot consistency with %d readers for %v...\n", readers, consistency)
		if err := td.VerifySnapshotConsistency(readers, consistency); err != nil {
			return fmt.Errorf("inconsistent snapshot: %w", err)
		}
		fmt.Printf("%s Every snapshot yielded exactly its count\n", ui.RenderPass("✓"))
		return nil
	}

	report, err := td.RunScroll(cmd.Context(), loadtest.ScrollOptions{
		Readers:  readers,
		PageSize: pageSize,
		Steps:    steps,
		JumpPct:  jump,
	})
	if err != nil {
		return err
	}

	fmt.Printf("%s\n\n", ui.RenderTitle(fmt.Sprintf("=== SCROLL LOAD TEST (%d readers, %d users) ===", readers, users)))
	report.Print(os.Stdout)
	return nil
}

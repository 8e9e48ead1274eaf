package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/mschirtzinger/userlist/internal/eventloop"
	"github.com/mschirtzinger/userlist/internal/listvm"
	"github.com/mschirtzinger/userlist/internal/ui"
	"github.com/mschirtzinger/userlist/internal/viewmodel"
	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	GroupID: "sync",
	Short:   "Run one sync cycle against the GitHub API",
	Long: `Fetch the GitHub user listing and merge it into the local cache.

This performs one cycle:
  1. Fetches up to github.max_pages pages of /users
  2. Merges all fetched users in a single transaction
  3. Opens a snapshot of the result and reports its row count

A failed cycle leaves the local cache unchanged.`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().Int("max-pages", 0, "Page budget for this cycle (default: github.max_pages)")
	rootCmd.AddCommand(syncCmd)
}

// syncOutcome collects the single result of a cycle on the loop goroutine.
type syncOutcome struct {
	done  chan struct{}
	rows  int32
	err   error
	first []listvm.Row
}

func (o *syncOutcome) OnUpdate(snapshot *listvm.Cache) {
	defer close(o.done)
	defer snapshot.Close()

	o.rows, o.err = snapshot.Count()
	for i := int32(0); i < 5 && o.err == nil; i++ {
		row, ok, err := snapshot.Get(i)
		if err != nil || !ok {
			o.err = err
			break
		}
		o.first = append(o.first, row)
	}
}

func (o *syncOutcome) OnFailure(err error) {
	o.err = err
	close(o.done)
}

func runSync(cmd *cobra.Command, args []string) error {
	maxPages, _ := cmd.Flags().GetInt("max-pages")
	if maxPages <= 0 {
		maxPages = cfg.GitHub.MaxPages
	}

	database, err := openStore()
	if err != nil {
		return err
	}
	defer database.Close()

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	loop := eventloop.New(logger.With("component", "loop"))
	loop.Start(context.Background())
	defer func() {
		loop.Stop()
		<-loop.Done()
	}()

	handle := viewmodel.NewWithConfig(database, newFetcher(), loop, &viewmodel.Config{
		MaxPages: maxPages,
		Logger:   logger.With("component", "viewmodel"),
	})
	defer handle.Stop()

	fmt.Printf("%s Syncing from %s...\n", ui.RenderAccent("🔄"), cfg.GitHub.BaseURL)
	start := time.Now()

	outcome := &syncOutcome{done: make(chan struct{})}
	if err := handle.Start(outcome); err != nil {
		return err
	}

	select {
	case <-outcome.done:
	case <-ctx.Done():
		handle.Stop()
		return fmt.Errorf("sync interrupted: %w", ctx.Err())
	}
	if outcome.err != nil {
		return fmt.Errorf("sync failed: %w", outcome.err)
	}

	fmt.Printf("%s Sync complete in %v\n", ui.RenderPass("✓"), time.Since(start).Round(time.Millisecond))
	fmt.Printf("   Users: %d\n", outcome.rows)
	fmt.Printf("   Cache: %s\n", database.Path())
	if len(outcome.first) > 0 {
		fmt.Println()
		width := len(fmt.Sprint(outcome.rows))
		for _, row := range outcome.first {
			fmt.Println(ui.Row(row.Index, row.Value, width))
		}
	}
	return nil
}

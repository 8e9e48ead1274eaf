package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mschirtzinger/userlist/internal/tui"
	"github.com/mschirtzinger/userlist/internal/viewmodel"
	"github.com/spf13/cobra"
)

var tuiCmd = &cobra.Command{
	Use:     "tui",
	GroupID: "view",
	Short:   "Browse the user list interactively",
	Long: `Open the interactive list view.

A sync starts when the view opens; press r to sync again. Rows are read
lazily from the current snapshot as you scroll.`,
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, args []string) error {
	database, err := openStore()
	if err != nil {
		return err
	}
	defer database.Close()

	tasks := tui.NewTaskQueue()
	handle := viewmodel.NewWithConfig(database, newFetcher(), tasks, &viewmodel.Config{
		MaxPages: cfg.GitHub.MaxPages,
		Logger:   logger.With("component", "viewmodel"),
	})

	model := tui.NewModel(handle, tasks)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context()))

	logger.Info("starting TUI")
	_, runErr := p.Run()

	// Release anything the program did not get to deliver
	handle.Stop()
	tasks.Close()
	tasks.Drain()
	model.Close()

	if runErr != nil {
		logger.Error("TUI error", "error", runErr)
		return fmt.Errorf("TUI error: %w", runErr)
	}
	return nil
}

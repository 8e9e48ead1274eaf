package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/mschirtzinger/userlist/internal/listvm"
	"github.com/mschirtzinger/userlist/internal/ui"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:     "list",
	GroupID: "view",
	Short:   "Print a window of the locally cached users",
	Long: `Print rows of the local cache in ascending id order.

The rows come from one consistent snapshot, read lazily: only rows up to
--start + --limit are loaded.

Examples:
  userlist list                      # first 20 users
  userlist list --start 100 --limit 50
  userlist list --json`,
	RunE: runList,
}

func init() {
	listCmd.Flags().Int32("start", 0, "Index of the first row")
	listCmd.Flags().Int32("limit", 20, "Number of rows to print")
	listCmd.Flags().Bool("json", false, "Output rows as JSON")
	rootCmd.AddCommand(listCmd)
}

type listOutput struct {
	Total int32        `json:"total"`
	Rows  []listvm.Row `json:"rows"`
}

func runList(cmd *cobra.Command, args []string) error {
	start, _ := cmd.Flags().GetInt32("start")
	limit, _ := cmd.Flags().GetInt32("limit")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	// Validate flags
	if start < 0 {
		return fmt.Errorf("--start must not be negative")
	}
	if limit <= 0 {
		return fmt.Errorf("--limit must be positive")
	}

	database, err := openStore()
	if err != nil {
		return err
	}
	defer database.Close()

	snap, err := database.OpenSnapshot(cmd.Context())
	if err != nil {
		return err
	}
	cache := listvm.New(snap, snap)
	defer cache.Close()

	total, err := cache.Count()
	if err != nil {
		return err
	}

	out := listOutput{Total: total, Rows: []listvm.Row{}}
	for i := start; i < start+limit; i++ {
		row, ok, err := cache.Get(i)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		out.Rows = append(out.Rows, row)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	if total == 0 {
		fmt.Printf("%s Local cache is empty\n", ui.RenderWarn("⚠"))
		fmt.Printf("   Run 'userlist sync' to fetch users\n")
		return nil
	}

	width := len(fmt.Sprint(total))
	for _, row := range out.Rows {
		fmt.Println(ui.Row(row.Index, row.Value, width))
	}
	fmt.Printf("\n%s\n", ui.LabelStyle.Render(fmt.Sprintf("rows %d-%d of %d", start, start+int32(len(out.Rows)), total)))
	return nil
}

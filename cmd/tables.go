package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// tableSummary is the condensed per-table listing.
type tableSummary struct {
	Name        string `json:"name"`
	RowCount    int64  `json:"row_count"`
	ColumnCount int    `json:"column_count"`
}

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "List loaded tables",
	Long: `List all tables in the database with their row and column counts.

Examples:
  tabletalk tables`,
	Run: func(cmd *cobra.Command, args []string) {
		store, cleanup, err := InitStore(dataDir)
		if err != nil {
			HandleError(err, "Failed to initialize database")
		}
		defer cleanup()

		summaries := []tableSummary{}
		for _, table := range store.Tables() {
			summaries = append(summaries, tableSummary{
				Name:        table.Name,
				RowCount:    table.RowCount,
				ColumnCount: len(table.Columns),
			})
		}

		output, err := json.MarshalIndent(summaries, "", "  ")
		if err != nil {
			HandleError(err, "Failed to encode JSON")
		}

		fmt.Println(string(output))
	},
}

func init() {
	rootCmd.AddCommand(tablesCmd)
}

package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	loadTableName string
	loadURL       string
)

var loadCmd = &cobra.Command{
	Use:   "load [file.csv]",
	Short: "Load a CSV file into the database",
	Long: `Load a CSV file into a new DuckDB table. Column names are cleaned to
SQL-friendly identifiers and column types are inferred automatically.
The table name defaults to the file name; pass --table to override it.

Examples:
  tabletalk load sales.csv
  tabletalk load sales.csv --table q3_sales
  tabletalk load --url https://example.com/data/orders.csv`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if loadURL == "" && len(args) == 0 {
			HandleError(fmt.Errorf("a file path or --url is required"), "Missing CSV source")
		}

		store, cleanup, err := InitStore(dataDir)
		if err != nil {
			HandleError(err, "Failed to initialize database")
		}
		defer cleanup()

		var table TableJSON
		if loadURL != "" {
			table, err = store.LoadCSVFromURL(loadURL, loadTableName)
		} else {
			table, err = store.LoadCSV(args[0], loadTableName)
		}
		if err != nil {
			HandleError(err, "Failed to load CSV")
		}

		output, err := json.MarshalIndent(table, "", "  ")
		if err != nil {
			HandleError(err, "Failed to encode JSON")
		}

		fmt.Println(string(output))
	},
}

func init() {
	loadCmd.Flags().StringVarP(&loadTableName, "table", "t", "", "Custom table name (optional)")
	loadCmd.Flags().StringVarP(&loadURL, "url", "u", "", "Download the CSV from a URL instead of a local file")
	rootCmd.AddCommand(loadCmd)
}

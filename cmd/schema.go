package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var schemaText bool

var schemaCmd = &cobra.Command{
	Use:   "schema [table...]",
	Short: "Show the schema of loaded tables",
	Long: `Show column names and inferred types for the named tables, or for all
loaded tables when none are named.

With --text the schema is printed in the exact textual form the SQL
generator is prompted with, including sample rows.

Examples:
  tabletalk schema
  tabletalk schema orders
  tabletalk schema --text orders customers`,
	Run: func(cmd *cobra.Command, args []string) {
		store, cleanup, err := InitStore(dataDir)
		if err != nil {
			HandleError(err, "Failed to initialize database")
		}
		defer cleanup()

		if schemaText {
			text, err := store.SchemaForLLM(args...)
			if err != nil {
				HandleError(err, "Failed to render schema")
			}
			fmt.Println(text)
			return
		}

		var tables []TableJSON
		if len(args) == 0 {
			tables = store.Tables()
		} else {
			for _, name := range args {
				table, ok := store.Table(name)
				if !ok {
					HandleError(fmt.Errorf("unknown table: %s", name), "Failed to look up table")
				}
				tables = append(tables, table)
			}
		}

		output, err := json.MarshalIndent(tables, "", "  ")
		if err != nil {
			HandleError(err, "Failed to encode JSON")
		}

		fmt.Println(string(output))
	},
}

func init() {
	schemaCmd.Flags().BoolVar(&schemaText, "text", false, "Print the generator-facing schema text instead of JSON")
	rootCmd.AddCommand(schemaCmd)
}

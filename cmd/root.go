package cmd

import (
	"github.com/spf13/cobra"
)

var (
	dataDir string
	rootCmd = &cobra.Command{
		Use:   "tabletalk",
		Short: "TableTalk - Query uploaded CSV data in plain English",
		Long: `TableTalk loads CSV files into an embedded DuckDB database and answers
natural language questions about them. Questions are translated to SQL by
Claude and failing queries are repaired automatically, within a bounded
number of attempts.

When run without commands, it launches an interactive TUI.
Use subcommands for CLI mode with JSON output.`,
		Run: func(cmd *cobra.Command, args []string) {
			// No subcommand specified - launch TUI
			LaunchTUI(dataDir)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&dataDir, "data-dir", "d", "data/", "Directory for the DuckDB database and uploads")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

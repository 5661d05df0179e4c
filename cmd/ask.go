package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"tabletalk/internal/nlsql"
)

var (
	askTables      []string
	askMaxAttempts int
	askInsights    bool
)

// askResult is the JSON shape of an answered question. Exactly one of
// Rows/Error is present, mirroring the correction loop's final result.
type askResult struct {
	Question string           `json:"question"`
	SQL      string           `json:"sql"`
	Rows     []map[string]any `json:"rows,omitempty"`
	Error    string           `json:"error,omitempty"`
	Attempts int              `json:"attempts,omitempty"`
	Insights string           `json:"insights,omitempty"`
}

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question about loaded data in plain English",
	Long: `Translate a natural language question into DuckDB SQL with Claude,
execute it, and repair the query automatically when execution fails.
Failing queries are retried up to --max-attempts times in total.

Requires ANTHROPIC_API_KEY environment variable to be set.

Examples:
  tabletalk ask "What is the average amount in orders?"
  tabletalk ask --tables orders,customers "Top 5 customers by total spend"
  tabletalk ask --insights "How did sales trend by month?"`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		question := strings.TrimSpace(strings.Join(args, " "))
		if question == "" {
			HandleError(fmt.Errorf("question is required"), "Missing question")
		}

		store, cleanup, err := InitStore(dataDir)
		if err != nil {
			HandleError(err, "Failed to initialize database")
		}
		defer cleanup()

		engine, err := nlsql.NewEngine()
		if err != nil {
			HandleError(err, "Failed to initialize SQL engine")
		}

		schemaContext, err := store.SchemaForLLM(askTables...)
		if err != nil {
			HandleError(err, "Failed to render schema")
		}

		ctx := context.Background()

		sqlQuery, err := engine.GenerateSQL(ctx, question, schemaContext)
		if err != nil {
			HandleError(err, "Failed to generate SQL")
		}

		maxAttempts := MaxAttemptsFromEnv(askMaxAttempts)
		finalQuery, rows, err := engine.ExecuteWithCorrection(ctx, sqlQuery, store.ExecuteQuery, maxAttempts)

		result := askResult{Question: question, SQL: finalQuery, Rows: rows}
		if err != nil {
			var execErr *nlsql.ExecError
			if !errors.As(err, &execErr) {
				HandleError(err, "Failed to execute query")
			}
			// Exhaustion is data, not a fault: report the last query and error.
			result.Error = execErr.Message
			result.Attempts = execErr.Attempts
		}

		if askInsights && result.Error == "" {
			insights, err := engine.Summarize(ctx, rows, question)
			if err != nil {
				HandleError(err, "Failed to generate insights")
			}
			result.Insights = insights
		}

		output, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			HandleError(err, "Failed to encode JSON")
		}

		fmt.Println(string(output))
	},
}

func init() {
	askCmd.Flags().StringSliceVarP(&askTables, "tables", "t", nil, "Restrict the schema context to these tables (default: all)")
	askCmd.Flags().IntVarP(&askMaxAttempts, "max-attempts", "m", nlsql.DefaultMaxAttempts, "Maximum executions per question, including corrections")
	askCmd.Flags().BoolVarP(&askInsights, "insights", "i", false, "Summarize the result rows in natural language")
	rootCmd.AddCommand(askCmd)
}

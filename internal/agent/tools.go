package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"charm.land/fantasy"
)

// CreateTools builds the Fantasy tools the chat agent can call: listing
// tables, rendering schemas, and running SQL. Each invocation opens the
// store fresh so tool calls never share connection state.
func CreateTools(dataDir string, initStore InitStoreFunc) []fantasy.AgentTool {
	var tools []fantasy.AgentTool
	for _, name := range []string{"tables", "schema", "query"} {
		tools = append(tools, createTool(name, dataDir, initStore))
	}
	return tools
}

// tablesToolInput is the (empty) parameter schema for the tables tool.
type tablesToolInput struct{}

// schemaToolInput is the parameter schema for the schema tool.
type schemaToolInput struct {
	Tables string `json:"tables,omitempty" description:"Comma-separated table names to describe (empty for all tables)"`
}

// queryToolInput is the parameter schema for the query tool.
type queryToolInput struct {
	SQL string `json:"sql" description:"The DuckDB SQL query to execute"`
}

// createTool creates one Fantasy tool by name.
func createTool(toolName, dataDir string, initStore InitStoreFunc) fantasy.AgentTool {
	var description string
	switch toolName {
	case "tables":
		description = "List the names of all tables loaded into the database"
	case "schema":
		description = "Show column names, types, and sample rows for tables"
	case "query":
		description = "Execute a DuckDB SQL query and return the rows as JSON"
	}

	toolFunc := func(ctx context.Context, params map[string]interface{}) (string, error) {
		store, cleanup, err := initStore(dataDir)
		if err != nil {
			return "", fmt.Errorf("failed to initialize database: %v", err)
		}
		defer cleanup()

		switch toolName {
		case "tables":
			return strings.Join(store.TableNames(), "\n"), nil

		case "schema":
			var names []string
			if t, ok := params["tables"].(string); ok && t != "" {
				for _, name := range strings.Split(t, ",") {
					names = append(names, strings.TrimSpace(name))
				}
			}
			text, err := store.SchemaForLLM(names...)
			if err != nil {
				return "", fmt.Errorf("failed to render schema: %v", err)
			}
			return text, nil

		case "query":
			sqlQuery, ok := params["sql"].(string)
			if !ok || sqlQuery == "" {
				return "", fmt.Errorf("sql parameter is required")
			}

			rows, err := store.ExecuteQuery(sqlQuery)
			if err != nil {
				return "", fmt.Errorf("failed to execute query: %v", err)
			}

			jsonBytes, err := json.MarshalIndent(rows, "", "  ")
			if err != nil {
				return "", fmt.Errorf("failed to encode result as JSON: %v", err)
			}
			return string(jsonBytes), nil

		default:
			return "", fmt.Errorf("unsupported tool: %s", toolName)
		}
	}

	switch toolName {
	case "schema":
		return fantasy.NewAgentTool(
			toolName,
			description,
			func(ctx context.Context, input schemaToolInput, _ fantasy.ToolCall) (fantasy.ToolResponse, error) {
				text, err := toolFunc(ctx, map[string]interface{}{"tables": input.Tables})
				if err != nil {
					return fantasy.ToolResponse{}, err
				}
				return fantasy.NewTextResponse(text), nil
			},
		)
	case "query":
		return fantasy.NewAgentTool(
			toolName,
			description,
			func(ctx context.Context, input queryToolInput, _ fantasy.ToolCall) (fantasy.ToolResponse, error) {
				text, err := toolFunc(ctx, map[string]interface{}{"sql": input.SQL})
				if err != nil {
					return fantasy.ToolResponse{}, err
				}
				return fantasy.NewTextResponse(text), nil
			},
		)
	default:
		return fantasy.NewAgentTool(
			toolName,
			description,
			func(ctx context.Context, _ tablesToolInput, _ fantasy.ToolCall) (fantasy.ToolResponse, error) {
				text, err := toolFunc(ctx, map[string]interface{}{})
				if err != nil {
					return fantasy.ToolResponse{}, err
				}
				return fantasy.NewTextResponse(text), nil
			},
		)
	}
}

package cmd

import (
	"fmt"
	"os"
	"strconv"
)

// ColumnJSON is a typed column in CLI output.
type ColumnJSON struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// TableJSON is table metadata in CLI output.
type TableJSON struct {
	Name       string           `json:"name"`
	Columns    []ColumnJSON     `json:"columns"`
	RowCount   int64            `json:"row_count"`
	SampleRows []map[string]any `json:"sample_rows,omitempty"`
}

// StoreInterface wraps data store operations for CLI commands.
type StoreInterface interface {
	LoadCSV(path, tableName string) (TableJSON, error)
	LoadCSVFromURL(url, tableName string) (TableJSON, error)
	Tables() []TableJSON
	Table(name string) (TableJSON, bool)
	SchemaForLLM(names ...string) (string, error)
	ExecuteQuery(query string) ([]map[string]any, error)
	Close() error
}

// These variables are set by the main package.
var (
	LaunchTUI   func(dataDir string)
	InitStore   func(dataDir string) (StoreInterface, func(), error)
	StartServer func(dataDir string, port int) error
)

// HandleError prints error and exits
func HandleError(err error, message string) {
	fmt.Fprintf(os.Stderr, "Error: %s: %v\n", message, err)
	os.Exit(1)
}

// MaxAttemptsFromEnv reads the TABLETALK_MAX_SQL_RETRIES override. Values
// outside [1,5] are clamped; 5 caps the API spend per question.
func MaxAttemptsFromEnv(fallback int) int {
	retryStr := os.Getenv("TABLETALK_MAX_SQL_RETRIES")
	if retryStr == "" {
		return fallback
	}
	n, err := strconv.Atoi(retryStr)
	if err != nil {
		return fallback
	}
	if n < 1 {
		n = 1
	} else if n > 5 {
		n = 5
	}
	return n
}

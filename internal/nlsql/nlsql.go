// Package nlsql turns natural-language questions into DuckDB SQL and runs
// them with bounded self-correction. The text-generation capability is an
// injected interface so the whole loop can be driven by scripted responses
// in tests.
package nlsql

import "context"

// Row is a single result row keyed by column name. Values are scalars
// (int64, float64, string, bool, or time.Time).
type Row = map[string]any

// ExecuteFunc runs a SQL query against a data store. Exactly one of the
// return values is non-nil. The error text is fed back to the generator
// verbatim on correction attempts, so it should be the raw engine message.
type ExecuteFunc func(query string) ([]Row, error)

// TextGenerator is the external text-generation capability. A single call
// maps one prompt to one response. Implementations are expected to block
// until the response is complete; callers wanting deadlines wrap ctx.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

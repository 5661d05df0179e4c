package nlsql

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// insightBatchSize is how many rows are described per generation call.
const insightBatchSize = 10

const insightBatchPrompt = `You are a data analyst. The user asked: "%s"

Here is a batch of rows from the query result (%d of %d total rows):

%s

Describe the notable values, patterns, or outliers in this batch in two or
three sentences of plain prose. Do not repeat the raw values verbatim.`

const insightCombinePrompt = `You are a data analyst. The user asked: "%s"

Below are per-batch observations about the full query result. Combine them
into a single short answer to the user's question. Do not mention batches.

%s`

// Summarize produces natural-language commentary for a query result. Rows
// are chunked into fixed-size batches, each batch is described by one
// generation call, and the batch commentaries are merged with a final call
// when there is more than one. There are no retry semantics here; the
// first generator failure aborts.
func (e *Engine) Summarize(ctx context.Context, rows []Row, question string) (string, error) {
	if len(rows) == 0 {
		return "The query returned no rows.", nil
	}

	var parts []string
	for start := 0; start < len(rows); start += insightBatchSize {
		end := start + insightBatchSize
		if end > len(rows) {
			end = len(rows)
		}

		prompt := fmt.Sprintf(insightBatchPrompt,
			question, end-start, len(rows), renderRows(rows[start:end], start))

		part, err := e.generator.Generate(ctx, prompt)
		if err != nil {
			if e.logger != nil {
				e.logger.Error("Insight generation failed", "error", err, "batch_start", start)
			}
			return "", &GenerateError{Err: err}
		}
		parts = append(parts, strings.TrimSpace(part))
	}

	if len(parts) == 1 {
		return parts[0], nil
	}

	combined, err := e.generator.Generate(ctx,
		fmt.Sprintf(insightCombinePrompt, question, strings.Join(parts, "\n\n")))
	if err != nil {
		if e.logger != nil {
			e.logger.Error("Insight combination failed", "error", err, "batches", len(parts))
		}
		return "", &GenerateError{Err: err}
	}

	return strings.TrimSpace(combined), nil
}

// renderRows formats rows as "Row <i>: col=val, ..." lines. Columns are
// sorted so the rendering is stable across calls.
func renderRows(rows []Row, offset int) string {
	var b strings.Builder

	for i, row := range rows {
		cols := make([]string, 0, len(row))
		for col := range row {
			cols = append(cols, col)
		}
		sort.Strings(cols)

		pairs := make([]string, 0, len(cols))
		for _, col := range cols {
			pairs = append(pairs, fmt.Sprintf("%s=%v", col, row[col]))
		}

		fmt.Fprintf(&b, "Row %d: %s\n", offset+i+1, strings.Join(pairs, ", "))
	}

	return b.String()
}

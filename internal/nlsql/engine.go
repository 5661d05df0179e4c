package nlsql

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

const (
	// DefaultMaxAttempts bounds the number of executions per question when
	// the caller does not choose a budget.
	DefaultMaxAttempts = 3

	generatePromptTemplate = `You are an expert SQL query generator.
Given the following database schema information and user question,
generate a valid SQL query that answers the user's question.

Database Schema Information:
%s

User Question: %s

The SQL query should:
1. Be compatible with DuckDB syntax
2. Use double quotes for table and column names
3. Be optimized and efficient
4. Directly answer the user's question

Return only the SQL query without any explanation or markdown fencing.`

	correctPromptTemplate = `The following SQL query:

%s

Generated this error:

%s

Please fix the SQL query to resolve this error. The query should be compatible with DuckDB.
Return only the corrected SQL query without any explanation or markdown fencing.`
)

// Engine generates DuckDB SQL from natural-language questions and repairs
// failing queries with bounded retries. It holds no per-question state, so
// a single Engine can serve concurrent callers as long as its generator is
// safe for concurrent use.
type Engine struct {
	generator TextGenerator
	logger    *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine) error

// WithGenerator supplies a custom text-generation capability. Used by tests
// to script responses and by hosts that already hold a client.
func WithGenerator(g TextGenerator) Option {
	return func(e *Engine) error {
		if g == nil {
			return fmt.Errorf("generator cannot be nil")
		}
		e.generator = g
		return nil
	}
}

// WithLogger attaches a structured logger. Without one the engine is silent.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) error {
		e.logger = l
		return nil
	}
}

// NewEngine creates an Engine. When no generator is supplied it builds a
// Claude-backed one from the ANTHROPIC_API_KEY environment variable and
// fails fast if the key is missing.
func NewEngine(opts ...Option) (*Engine, error) {
	e := &Engine{}

	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if e.generator == nil {
		apiKey := os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, ErrMissingAPIKey
		}
		e.generator = NewClaudeGenerator(apiKey)
	}

	return e, nil
}

// GenerateSQL turns a question and a schema rendering into a candidate SQL
// query. The question must be non-empty; schemaContext is the textual
// schema produced by the catalog. The response is sanitized but not
// validated, syntax errors surface at execution time.
func (e *Engine) GenerateSQL(ctx context.Context, question, schemaContext string) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", fmt.Errorf("question cannot be empty")
	}

	prompt := fmt.Sprintf(generatePromptTemplate, schemaContext, question)

	response, err := e.generator.Generate(ctx, prompt)
	if err != nil {
		if e.logger != nil {
			e.logger.Error("SQL generation failed", "error", err, "question", question)
		}
		return "", &GenerateError{Err: err}
	}

	query := SanitizeSQL(response)
	if e.logger != nil {
		e.logger.Info("Generated SQL", "question", question, "sql", query)
	}

	return query, nil
}

// CorrectSQL asks the generator to repair a failing query. The query and
// error text are embedded verbatim; the error is opaque context, not
// something the engine parses or classifies.
func (e *Engine) CorrectSQL(ctx context.Context, query, errText string) (string, error) {
	prompt := fmt.Sprintf(correctPromptTemplate, query, errText)

	response, err := e.generator.Generate(ctx, prompt)
	if err != nil {
		if e.logger != nil {
			e.logger.Error("SQL correction failed", "error", err, "sql", query)
		}
		return "", &GenerateError{Err: err}
	}

	corrected := SanitizeSQL(response)
	if e.logger != nil {
		e.logger.Info("Corrected SQL", "previous_sql", query, "sql", corrected)
	}

	return corrected, nil
}

// ExecuteWithCorrection runs a query and repairs it on failure, up to
// maxAttempts executions and maxAttempts-1 corrections. It returns the
// final query together with either the result rows or the error:
//
//   - on success, the rows and a nil error
//   - when every execution failed, a nil row slice and an *ExecError
//     carrying the last engine error text
//   - when the generator itself fails mid-correction, a nil row slice and
//     a *GenerateError; this aborts the loop without consuming the budget
//
// maxAttempts below 1 is treated as 1: the loop always executes at least
// once before giving up. Queries are immutable; every repair produces a new
// one, so a failed attempt cannot corrupt the next.
func (e *Engine) ExecuteWithCorrection(ctx context.Context, query string, execute ExecuteFunc, maxAttempts int) (string, []Row, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	current := SanitizeSQL(query)
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		rows, err := execute(current)
		if err == nil {
			if e.logger != nil {
				e.logger.Info("Query succeeded", "sql", current, "attempt", attempt+1, "rows", len(rows))
			}
			return current, rows, nil
		}

		lastErr = err
		if e.logger != nil {
			e.logger.Warn("Query execution failed",
				"error", err,
				"sql", current,
				"attempt", attempt+1,
				"max_attempts", maxAttempts)
		}

		if attempt < maxAttempts-1 {
			corrected, cerr := e.CorrectSQL(ctx, current, err.Error())
			if cerr != nil {
				return current, nil, cerr
			}
			current = corrected
		}
	}

	return current, nil, &ExecError{
		Query:    current,
		Attempts: maxAttempts,
		Message:  lastErr.Error(),
	}
}

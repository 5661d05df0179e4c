package nlsql

import "errors"

// ErrMissingAPIKey is returned by NewEngine when no generator was supplied
// and the ANTHROPIC_API_KEY environment variable is not set. This is a
// fatal configuration error, not a retryable one.
var ErrMissingAPIKey = errors.New("ANTHROPIC_API_KEY environment variable not set")

// GenerateError wraps a failure of the text-generation capability itself
// (network, quota, empty response). It aborts the current attempt sequence
// and does not count against the correction budget.
type GenerateError struct {
	Err error
}

func (e *GenerateError) Error() string {
	return "sql generation failed: " + e.Err.Error()
}

func (e *GenerateError) Unwrap() error {
	return e.Err
}

// ExecError reports that every execution in the attempt budget failed. It
// carries the final query and the last engine error text so the host can
// show both without string matching.
type ExecError struct {
	Query    string
	Attempts int
	Message  string
}

func (e *ExecError) Error() string {
	return e.Message
}

package nlsql

import "strings"

// SanitizeSQL strips the code-fence wrapping that models tend to add even
// when told not to. It removes exactly one pair of triple-backtick or
// triple-quote fences plus an optional "sql" language tag, then trims
// whitespace. Already-clean SQL passes through unchanged, so the function
// is idempotent.
func SanitizeSQL(s string) string {
	q := strings.TrimSpace(s)

	switch {
	case len(q) >= 6 && strings.HasPrefix(q, "'''") && strings.HasSuffix(q, "'''"):
		q = strings.TrimSpace(q[3 : len(q)-3])
	case len(q) >= 6 && strings.HasPrefix(q, "```") && strings.HasSuffix(q, "```"):
		q = strings.TrimSpace(q[3 : len(q)-3])
		if strings.HasPrefix(q, "sql") {
			q = strings.TrimSpace(q[3:])
		}
	}

	return q
}

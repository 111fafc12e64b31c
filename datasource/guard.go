package datasource

import (
	"strings"
)

var allowedPrefixes = []string{"select", "with", "show", "describe", "explain"}

// Statement is a query that passed the guard.
type Statement struct {
	// SQL is the text to execute: full-line comments removed, case preserved.
	SQL string
	// Canonical is SQL trimmed and lower-cased. It is only used for prefix checks.
	Canonical string
}

// Guard validates raw SQL against the read-only allow-list.
//
// The base check is a prefix test on the canonical text and is not a parser:
// multi-statement payloads or engine specific write forms such as
// "SELECT ... INTO" pass it. Strict adds a lexer based scan that rejects
// those, and connectors additionally put their session into read-only mode.
type Guard struct {
	Strict  bool
	dialect *dialect
}

// Validate runs the base guard and returns the canonical form of rawSQL.
func Validate(rawSQL string) (string, error) {
	st, err := Guard{}.Check(rawSQL)
	if err != nil {
		return "", err
	}
	return st.Canonical, nil
}

// Check validates rawSQL and returns the statement to execute.
func (g Guard) Check(rawSQL string) (Statement, error) {
	trimmed := strings.TrimSpace(rawSQL)
	if trimmed == "" {
		return Statement{}, invalidQueryf("SQL must not be empty")
	}

	lines := strings.Split(trimmed, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		kept = append(kept, line)
	}
	text := strings.TrimSpace(strings.Join(kept, "\n"))
	canonical := strings.ToLower(text)
	if canonical == "" {
		return Statement{}, invalidQueryf("SQL must not be empty")
	}

	if !hasAllowedPrefix(canonical) {
		return Statement{}, invalidQueryf("only SELECT/WITH/SHOW/DESCRIBE/EXPLAIN statements are allowed")
	}

	if g.Strict {
		d := g.dialect
		if d == nil {
			d = standardDialect
		}
		if err := d.checkStrict(text); err != nil {
			return Statement{}, err
		}
	}

	return Statement{SQL: text, Canonical: canonical}, nil
}

func hasAllowedPrefix(canonical string) bool {
	for _, p := range allowedPrefixes {
		if strings.HasPrefix(canonical, p) {
			return true
		}
	}
	return false
}

// isIntrospection reports whether the canonical statement must never be paginated.
func isIntrospection(canonical string) bool {
	return strings.HasPrefix(canonical, "show") ||
		strings.HasPrefix(canonical, "describe") ||
		strings.HasPrefix(canonical, "explain")
}

package helper

import (
	"fmt"
	"strings"
)

const obfuscated = "<obfuscated>"

// CsvToStringSliceTrimSpaces converts a string of the form, 'f1, f2,f3...' into a slice of string values.
// Empty tokens are dropped.
func CsvToStringSliceTrimSpaces(s string) []string {
	tokens := strings.Split(s, ",")
	retval := make([]string, 0, len(tokens))
	for x := range tokens {
		if t := strings.TrimSpace(tokens[x]); t != "" {
			retval = append(retval, t)
		}
	}
	return retval
}

// Obfuscate returns a fixed placeholder for any non-empty secret.
func Obfuscate(secret string) string {
	if secret == "" {
		return ""
	}
	return obfuscated
}

// EscapeSingleQuotes doubles single quotes so s can be embedded in a SQL string literal.
func EscapeSingleQuotes(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// SqlStringLiteral wraps s in single quotes after escaping it.
func SqlStringLiteral(s string) string {
	return fmt.Sprintf("'%v'", EscapeSingleQuotes(s))
}

// Truncate shortens s to n bytes, adding "..." when it was cut.
func Truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Package strings provides string manipulation utilities.
package strings

import (
	"strings"
)

// DedupeAndTrim removes duplicates and empty strings from a slice,
// trimming whitespace from each element. Order is preserved.
//
// Example:
//
//	DedupeAndTrim([]string{"  foo ", "bar", "foo", "", "  "})
//	// Returns: []string{"foo", "bar"}
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))

	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; !ok {
			seen[trimmed] = struct{}{}
			result = append(result, trimmed)
		}
	}

	return result
}

// NormalizeKey trims whitespace and lowercases a value for use as a lock or
// cache key. Matching stays exact-string; only key derivation normalizes.
func NormalizeKey(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

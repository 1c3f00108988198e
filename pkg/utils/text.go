// Package utils provides shared utilities for text, math, and logging.
package utils

import "unicode/utf8"

// Ellipsis is appended to text cut short by Truncate.
const Ellipsis = "..."

// Truncate returns s cut to maxLen runes, with "..." appended if truncated.
// If maxLen is 0 or negative, returns s unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen]) + Ellipsis
}

// RuneLen is the character length used for chunk and context budgets.
func RuneLen(s string) int {
	return utf8.RuneCountInString(s)
}

// LastRunes returns the last n runes of s.
func LastRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}

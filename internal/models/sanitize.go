package models

import "strings"

// Collection name length bounds.
const (
	MinCollectionNameLen = 3
	MaxCollectionNameLen = 63
)

// SanitizeCollectionName maps name onto [A-Za-z0-9_-]{3,63}: other runes become
// "_", long names are cut at 63 and short ones are right-padded with "_".
// Applying it twice gives the same result as applying it once.
func SanitizeCollectionName(name string) string {
	var b strings.Builder
	n := 0
	for _, r := range name {
		if n == MaxCollectionNameLen {
			break
		}
		if isNameRune(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
		n++
	}
	for n < MinCollectionNameLen {
		b.WriteByte('_')
		n++
	}
	return b.String()
}

func isNameRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-'
}

package textutil

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Normalize converts s to NFC and collapses every run of whitespace to a
// single space, trimming both ends.
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}

// NormalizeLines is Normalize applied per line; blank lines are dropped.
func NormalizeLines(s string) string {
	if s == "" {
		return ""
	}
	lines := strings.Split(norm.NFC.String(s), "\n")
	out := lines[:0]
	for _, line := range lines {
		if cleaned := strings.Join(strings.Fields(line), " "); cleaned != "" {
			out = append(out, cleaned)
		}
	}
	return strings.Join(out, "\n")
}

// Truncate shortens s to at most maxRunes runes without splitting a rune.
// A non-positive limit returns s unchanged.
func Truncate(s string, maxRunes int) string {
	if maxRunes <= 0 || utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	count := 0
	for i := range s {
		if count == maxRunes {
			return s[:i]
		}
		count++
	}
	return s
}

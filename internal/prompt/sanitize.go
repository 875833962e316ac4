// Package prompt selects conversation context and composes role-tagged prompts for personas.
package prompt

import (
	"strings"
	"unicode/utf8"
)

// DefaultCharBudget is the maximum length of any single inbound text.
const DefaultCharBudget = 500

// directivePrefixes are line prefixes that could pass participant text off as instructions.
var directivePrefixes = []string{
	"moderator:",
	"system:",
	"instruction:",
	"instructions:",
}

// Sanitize strips directive prefixes from the start of every line.
// Stacked prefixes are all removed, so Sanitize(Sanitize(s)) == Sanitize(s).
func Sanitize(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = stripDirective(line)
	}
	return strings.Join(lines, "\n")
}

func stripDirective(line string) string {
	for {
		trimmed := strings.TrimLeft(line, " \t")
		prefix := matchDirective(trimmed)
		if prefix == 0 {
			return line
		}
		line = strings.TrimLeft(trimmed[prefix:], " \t")
	}
}

// matchDirective returns the byte length of a directive prefix at the start of s, or 0.
func matchDirective(s string) int {
	for _, p := range directivePrefixes {
		if len(s) >= len(p) && asciiEqualFold(s[:len(p)], p) {
			return len(p)
		}
	}
	return 0
}

func asciiEqualFold(s, lower string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if 'A' <= c && c <= 'Z' {
			c += 'a' - 'A'
		}
		if c != lower[i] {
			return false
		}
	}
	return true
}

// Truncate cuts s to at most n bytes. The cut backs off to a rune boundary.
// A budget of zero or less disables truncation.
func Truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

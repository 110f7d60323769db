package parser

import (
	"regexp"
	"strings"
)

// ocrSubstitutions repairs the well-known digit/letter confusions an OCR
// pass tends to introduce when a digit is bracketed by letters (e.g.
// "ba5mati" -> "basmati", "c0conut" -> "coconut"), plus a word-initial
// "o" before a digit ("o5" -> "05").
var ocrSubstitutions = []struct {
	pattern *regexp.Regexp
	repl    string
}{
	{regexp.MustCompile(`(?i)([a-z])0([a-z])`), "${1}o${2}"},
	{regexp.MustCompile(`(?i)([a-z])1([a-z])`), "${1}l${2}"},
	{regexp.MustCompile(`(?i)([a-z])5([a-z])`), "${1}s${2}"},
	{regexp.MustCompile(`(?i)\bo(\d)`), "0$1"}, // "o5" at a token boundary before a digit is almost always "05"
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// Normalize lowercases, collapses whitespace, and repairs common OCR
// substitutions. It must be idempotent:
// Normalize(Normalize(x)) == Normalize(x).
func Normalize(raw string) string {
	s := strings.ToLower(raw)
	s = whitespaceRe.ReplaceAllString(strings.TrimSpace(s), " ")
	// Repeat until stable: one pass misses overlapping matches such as
	// the second digit in "a1a1a".
	for {
		prev := s
		for _, sub := range ocrSubstitutions {
			s = sub.pattern.ReplaceAllString(s, sub.repl)
		}
		if s == prev {
			return s
		}
	}
}

// SplitLines breaks a normalized input into candidate line tokens on
// commas and newlines, which is how multi-item freeform text ("10 kg
// rice, 5 L oil") and itemized OCR receipts both present.
func SplitLines(normalized string) []string {
	raw := regexp.MustCompile(`[,\n]`).Split(normalized, -1)
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		l = strings.TrimSpace(l)
		if l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

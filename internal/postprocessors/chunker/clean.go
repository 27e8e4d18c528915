package chunker

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	spaceRuns   = regexp.MustCompile(`[ \t\x{00A0}]+`)
	spaceAround = regexp.MustCompile(` ?\n ?`)
	blankRuns   = regexp.MustCompile(`\n{3,}`)
)

// Clean normalises extracted text before chunking: line endings become LF,
// control characters are dropped, runs of spaces and tabs collapse to one
// space and more than one blank line collapses to a single blank line.
func Clean(text string) string {
	if text == "" {
		return ""
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	text = strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\t':
			return r
		case r == '\f' || r == '\v':
			return ' '
		case r == '\uFEFF' || r == unicode.ReplacementChar:
			return -1
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, text)

	text = spaceRuns.ReplaceAllString(text, " ")
	text = spaceAround.ReplaceAllString(text, "\n")
	text = blankRuns.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

package timeline

import (
	"html"
	"strings"
)

// Sanitize escapes markup-significant characters (& < > " ') so user text is
// rendered literally.
func Sanitize(s string) string {
	return html.EscapeString(s)
}

// SplitLines normalises line endings and splits text into ordered lines.
// Each line is rendered as its own non-wrapping segment.
func SplitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.Split(s, "\n")
}

// SanitizedLines splits s into lines and escapes each one.
func SanitizedLines(s string) []string {
	lines := SplitLines(s)
	for i, l := range lines {
		lines[i] = Sanitize(l)
	}
	return lines
}

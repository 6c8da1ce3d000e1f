package utils

import "github.com/charmbracelet/x/ansi"

// Truncate shortens s to maxLen terminal cells and appends "..." when it
// was cut. Escape sequences do not count toward the width.
func Truncate(s string, maxLen int) string {
	if ansi.StringWidth(s) <= maxLen {
		return s
	}
	return ansi.Truncate(s, maxLen, "") + "..."
}

// SingleLine collapses newlines so multi-line text fits one table row.
func SingleLine(s string) string {
	out := make([]rune, 0, len(s))
	prevSpace := false
	for _, r := range s {
		if r == '\n' || r == '\r' || r == '\t' {
			r = ' '
		}
		if r == ' ' && prevSpace {
			continue
		}
		prevSpace = r == ' '
		out = append(out, r)
	}
	return string(out)
}

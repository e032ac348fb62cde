// Package ansi provides stateless ANSI escape helpers for terminal output.
package ansi

import "strings"

const (
	esc   = "\x1b["
	Reset = esc + "0m"

	Bold = esc + "1m"

	Red     = esc + "31m"
	Green   = esc + "32m"
	Yellow  = esc + "33m"
	Blue    = esc + "34m"
	Magenta = esc + "35m"
	Cyan    = esc + "36m"
	White   = esc + "37m"

	// ClearScreen clears the terminal and homes the cursor.
	ClearScreen = esc + "2J" + esc + "H"
)

// Wrap surrounds s with the given ANSI code and a reset.
func Wrap(code, s string) string {
	if s == "" {
		return s
	}
	return code + s + Reset
}

// Heading renders s as a bold cyan heading.
func Heading(s string) string {
	return Wrap(Bold+Cyan, s)
}

// Strip removes ANSI escape sequences from s.
func Strip(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	i := 0
	for i < len(s) {
		if s[i] == 0x1b && i+1 < len(s) && s[i+1] == '[' {
			j := i + 2
			for j < len(s) && (s[j] < '@' || s[j] > '~') {
				j++
			}
			if j < len(s) {
				j++
			}
			i = j
			continue
		}
		b.WriteByte(s[i])
		i++
	}
	return b.String()
}

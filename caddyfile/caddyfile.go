// Package caddyfile removes and inspects top-level site blocks of a Caddyfile
// using line-granular brace counting.
//
// A block starts at a header line "label {" seen at depth zero and ends on the
// line where the running brace depth returns to zero. Braces are counted
// wherever they appear, including inside quoted strings and comments; the
// package is not a Caddyfile grammar.
package caddyfile

import (
	"strings"
	"unicode"
)

// Predicate decides whether the block with the given label is removed.
type Predicate func(label string) bool

// HasPrefix matches labels beginning with prefix, e.g. HasPrefix("s3.").
func HasPrefix(prefix string) Predicate {
	return func(label string) bool {
		return strings.HasPrefix(label, prefix)
	}
}

// ParseHeader reports whether line is a block header: optional whitespace, a
// label without whitespace or '{', optional whitespace, '{' and only whitespace
// after it.
func ParseHeader(line string) (string, bool) {
	s := strings.TrimSpace(line)
	if !strings.HasSuffix(s, "{") {
		return "", false
	}

	label := strings.TrimRightFunc(s[:len(s)-1], unicode.IsSpace)
	if label == "" || strings.ContainsFunc(label, func(r rune) bool { return r == '{' || unicode.IsSpace(r) }) {
		return "", false
	}

	return label, true
}

// delta is the brace balance of one line.
func delta(line string) int {
	return strings.Count(line, "{") - strings.Count(line, "}")
}

// scanner walks lines keeping the running depth, clamped at zero.
type scanner struct {
	depth int
}

func (s *scanner) step(line string) {
	s.depth = max(s.depth+delta(line), 0)
}

// RemoveBlocks drops every top-level block whose label satisfies shouldRemove,
// together with the blank lines that directly follow it. Everything else is
// kept verbatim. An unterminated block runs to the end of the input. The
// result has trailing whitespace trimmed and ends with exactly one newline.
func RemoveBlocks(text string, shouldRemove Predicate) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))

	var sc scanner

	for i := 0; i < len(lines); i++ {
		line := lines[i]

		label, isHeader := ParseHeader(line)
		if !isHeader || sc.depth != 0 || !shouldRemove(label) {
			out = append(out, line)
			sc.step(line)

			continue
		}

		sc.step(line)

		for sc.depth > 0 && i+1 < len(lines) {
			i++
			sc.step(lines[i])
		}

		for i+1 < len(lines) && strings.TrimSpace(lines[i+1]) == "" {
			i++
		}

		sc.depth = 0
	}

	return strings.TrimRightFunc(strings.Join(out, "\n"), unicode.IsSpace) + "\n"
}

// Labels returns the labels of the top-level blocks in order of appearance.
func Labels(text string) []string {
	var (
		labels []string
		sc     scanner
	)

	for _, line := range strings.Split(text, "\n") {
		if label, ok := ParseHeader(line); ok && sc.depth == 0 {
			labels = append(labels, label)
		}

		sc.step(line)
	}

	return labels
}

// ReplaceHost renames top-level blocks labelled exactly from to to. Other
// lines, including headers that merely contain from, are unchanged.
func ReplaceHost(text, from, to string) string {
	lines := strings.Split(text, "\n")

	var sc scanner

	for i, line := range lines {
		if label, ok := ParseHeader(line); ok && sc.depth == 0 && label == from {
			lines[i] = strings.Replace(line, from, to, 1)
		}

		sc.step(line)
	}

	return strings.Join(lines, "\n")
}

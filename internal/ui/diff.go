package ui

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Diff returns the changed lines between before and after, removed lines
// prefixed with "-" and added lines with "+". Unchanged runs between two
// changes are collapsed to a "..." line. Equal inputs give "".
func Diff(before, after string) string {
	if before == after {
		return ""
	}

	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var (
		sb  strings.Builder
		gap bool
	)

	for _, d := range diffs {
		var prefix string

		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		case diffmatchpatch.DiffEqual:
			gap = sb.Len() > 0

			continue
		}

		if gap {
			sb.WriteString("...\n")

			gap = false
		}

		for _, line := range splitLines(d.Text) {
			sb.WriteString(prefix + line + "\n")
		}
	}

	return sb.String()
}

func splitLines(text string) []string {
	if text == "" {
		return nil
	}

	return strings.Split(strings.TrimSuffix(text, "\n"), "\n")
}

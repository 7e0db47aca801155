package envfile

import "strings"

// Unquote removes one pair of matching surrounding double or single quotes.
func Unquote(raw string) string {
	if len(raw) >= 2 {
		q := raw[0]
		if (q == '"' || q == '\'') && raw[len(raw)-1] == q {
			return raw[1 : len(raw)-1]
		}
	}

	return raw
}

// Values returns every assigned key with its unquoted value. When a key is
// assigned more than once the last assignment wins, as it does for shells and
// docker compose.
func Values(text string) map[string]string {
	out := make(map[string]string)

	for _, l := range Parse(text).Lines {
		if l.Kind == KindAssignment {
			out[l.Key] = Unquote(l.Value)
		}
	}

	return out
}

// Format renders a new env file from groups of assignments. Groups are
// separated by one blank line; empty groups are skipped.
func Format(groups ...[]Update) string {
	var b strings.Builder

	for _, g := range groups {
		if len(g) == 0 {
			continue
		}

		if b.Len() > 0 {
			b.WriteByte('\n')
		}

		for _, u := range g {
			b.WriteString(AssignmentLine(u.Key, u.Value))
			b.WriteByte('\n')
		}
	}

	return b.String()
}

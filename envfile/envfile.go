// Package envfile edits dotenv-style KEY=value files.
//
// A file is parsed into a Document of lines. Assignment lines carry their key;
// every other line (comments, blanks, anything malformed) is opaque and kept
// byte for byte. Applying updates rewrites the first assignment of each updated
// key as KEY="value" and appends keys the file does not define under a marker
// comment, so applying the same updates twice changes nothing the second time.
//
// Values are written inside double quotes without escaping. A value containing
// a double quote produces a line that other dotenv readers may interpret
// differently. Updates whose value contains '\n' or '\r' are ignored, like
// updates with an invalid key: such a value would span several physical lines
// and the next Apply could only rewrite the first of them.
package envfile

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultMarker is the comment written above appended keys.
const DefaultMarker = "# Added by vpsops"

// Kind tells assignment lines from opaque ones.
type Kind int

const (
	// KindOpaque is a comment, blank or unrecognised line.
	KindOpaque Kind = iota
	// KindAssignment is a KEY=value line.
	KindAssignment
)

func (k Kind) String() string {
	if k == KindAssignment {
		return "assignment"
	}

	return "opaque"
}

// Line is one physical line of an env file.
type Line struct {
	Kind  Kind
	Key   string // set for assignments
	Value string // raw value after '=', surrounding whitespace trimmed, quotes kept
	Raw   string // the line exactly as read, without its newline
}

// Update sets Key to Value.
type Update struct {
	Key   string
	Value string
}

// Document is a parsed env file.
type Document struct {
	Lines []Line
}

// ParseLine classifies raw. An assignment is optional leading whitespace, a key
// matching [A-Za-z_][A-Za-z0-9_]*, optional whitespace, '=' and the rest of the
// line. Whitespace is anything unicode.IsSpace accepts, NBSP included.
// Anything else is opaque.
func ParseLine(raw string) Line {
	opaque := Line{Kind: KindOpaque, Raw: raw}

	i := skipSpace(raw, 0)
	start := i

	if i == len(raw) || !isKeyStart(raw[i]) {
		return opaque
	}

	for i < len(raw) && isKeyPart(raw[i]) {
		i++
	}

	key := raw[start:i]

	i = skipSpace(raw, i)
	if i == len(raw) || raw[i] != '=' {
		return opaque
	}

	return Line{
		Kind:  KindAssignment,
		Key:   key,
		Value: strings.TrimFunc(raw[i+1:], unicode.IsSpace),
		Raw:   raw,
	}
}

// Parse splits text into lines. One trailing newline is dropped first, so
// "A=1\n" is a single line. Only '\n' separates lines; a '\r' stays part of
// the line it ends. Empty text has no lines.
func Parse(text string) *Document {
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return &Document{}
	}

	raws := strings.Split(text, "\n")
	lines := make([]Line, len(raws))

	for i, raw := range raws {
		lines[i] = ParseLine(raw)
	}

	return &Document{Lines: lines}
}

// Get returns the value of the first assignment to key with one pair of
// surrounding quotes removed.
func (d *Document) Get(key string) (string, bool) {
	for _, l := range d.Lines {
		if l.Kind == KindAssignment && l.Key == key {
			return Unquote(l.Value), true
		}
	}

	return "", false
}

// Apply returns a new Document with updates applied; d is not modified.
//
// The first assignment of each updated key is replaced by KEY="value". Later
// assignments of the same key are left alone. Keys with no assignment are
// appended after a blank line and the marker comment, in update order. When an
// update names a key twice the last value wins. Updates whose key is not a
// valid env key, or whose value contains a line break, are ignored.
func (d *Document) Apply(updates []Update, marker string) *Document {
	values := make(map[string]string, len(updates))
	order := make([]string, 0, len(updates))

	for _, u := range updates {
		if !ValidKey(u.Key) || !ValidValue(u.Value) {
			continue
		}

		if _, dup := values[u.Key]; !dup {
			order = append(order, u.Key)
		}

		values[u.Key] = u.Value
	}

	out := make([]Line, 0, len(d.Lines)+len(order)+2)
	seen := make(map[string]bool, len(values))

	for _, l := range d.Lines {
		if l.Kind != KindAssignment {
			out = append(out, l)

			continue
		}

		first := !seen[l.Key]
		seen[l.Key] = true

		if v, ok := values[l.Key]; ok && first {
			out = append(out, assignment(l.Key, v))

			continue
		}

		out = append(out, l)
	}

	var missing []string

	for _, k := range order {
		if !seen[k] {
			missing = append(missing, k)
		}
	}

	if len(missing) > 0 {
		out = append(out, Line{Kind: KindOpaque}, Line{Kind: KindOpaque, Raw: commentLine(marker)})

		for _, k := range missing {
			out = append(out, assignment(k, values[k]))
		}
	}

	return &Document{Lines: out}
}

// String joins the lines with '\n' and ends the text with a newline.
func (d *Document) String() string {
	var b strings.Builder

	for i, l := range d.Lines {
		if i > 0 {
			b.WriteByte('\n')
		}

		b.WriteString(l.Raw)
	}

	b.WriteByte('\n')

	return b.String()
}

// Editor renders updates with a custom marker comment.
type Editor struct {
	// Marker is the comment above appended keys. Empty means DefaultMarker.
	// A missing leading '#' is added.
	Marker string
}

// Render parses original, applies updates and serialises the result.
func (e Editor) Render(original string, updates []Update) string {
	marker := e.Marker
	if marker == "" {
		marker = DefaultMarker
	}

	return Parse(original).Apply(updates, marker).String()
}

// Render is Editor{}.Render.
func Render(original string, updates []Update) string {
	return Editor{}.Render(original, updates)
}

// AssignmentLine formats KEY="value".
func AssignmentLine(key, value string) string {
	return key + `="` + value + `"`
}

// ValidKey reports whether key matches [A-Za-z_][A-Za-z0-9_]*.
func ValidKey(key string) bool {
	if key == "" || !isKeyStart(key[0]) {
		return false
	}

	for i := 1; i < len(key); i++ {
		if !isKeyPart(key[i]) {
			return false
		}
	}

	return true
}

// ValidValue reports whether value fits on one line.
func ValidValue(value string) bool {
	return !strings.ContainsAny(value, "\r\n")
}

func assignment(key, value string) Line {
	return Line{
		Kind:  KindAssignment,
		Key:   key,
		Value: `"` + value + `"`,
		Raw:   AssignmentLine(key, value),
	}
}

func commentLine(marker string) string {
	if strings.HasPrefix(strings.TrimSpace(marker), "#") {
		return marker
	}

	return "# " + marker
}

func skipSpace(s string, i int) int {
	for i < len(s) {
		r, size := utf8.DecodeRuneInString(s[i:])
		if !unicode.IsSpace(r) {
			break
		}

		i += size
	}

	return i
}

func isKeyStart(c byte) bool {
	return c == '_' || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

func isKeyPart(c byte) bool {
	return isKeyStart(c) || (c >= '0' && c <= '9')
}

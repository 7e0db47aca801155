package caddyfile

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

const site = `example.com {
  reverse_proxy app:3000
}
`

func TestParseHeader(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		line      string
		wantLabel string
		wantOK    bool
	}{
		{"simple", "example.com {", "example.com", true},
		{"no space", "example.com{", "example.com", true},
		{"indented", "  s3.example.com   {  ", "s3.example.com", true},
		{"tab", "\ts3.example.com\t{", "s3.example.com", true},
		{"with port", "example.com:443 {", "example.com:443", true},
		{"global options", "{", "", false},
		{"trailing content", "example.com { # site", "", false},
		{"inline block", "example.com { respond 200 }", "", false},
		{"two labels", "a.com b.com {", "", false},
		{"directive", "reverse_proxy app:3000", "", false},
		{"closing", "}", "", false},
		{"double brace", "a {{", "", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			label, ok := ParseHeader(tt.line)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantLabel, label)
		})
	}
}

func TestRemoveBlocks(t *testing.T) {
	t.Parallel()

	s3 := HasPrefix("s3.")

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "simple removal",
			in: site + `s3.example.com {
  reverse_proxy minio:9000
}
`,
			want: site,
		},
		{
			name: "removed block and following blanks in the middle",
			in: `s3.example.com {
  reverse_proxy minio:9000
}


` + site,
			want: site,
		},
		{
			name: "blank lines before the removed block are kept",
			in: `a.com {
}

s3.a.com {
}

b.com {
}
`,
			want: `a.com {
}

b.com {
}
`,
		},
		{
			name: "nested braces removed as one unit",
			in: site + `s3.example.com {
  @cors {
    method OPTIONS
  }
  handle @cors {
    respond 204
  }
  reverse_proxy minio:9000
}
`,
			want: site,
		},
		{
			name: "nested braces retained as one unit",
			in: `example.com {
  @api {
    path /api/*
  }
  s3.inner {
  }
}
`,
			want: `example.com {
  @api {
    path /api/*
  }
  s3.inner {
  }
}
`,
		},
		{
			name: "no match is a no-op",
			in:   site + "\nother.com {\n  respond 200\n}\n",
			want: site + "\nother.com {\n  respond 200\n}\n",
		},
		{
			name: "trailing whitespace normalised",
			in:   site + "\n\n   \n",
			want: site,
		},
		{
			name: "unterminated removed block runs to end",
			in:   site + "s3.example.com {\n  reverse_proxy minio:9000\n",
			want: site,
		},
		{
			name: "unterminated retained block kept to end",
			in:   "example.com {\n  reverse_proxy app:3000\n",
			want: "example.com {\n  reverse_proxy app:3000\n",
		},
		{
			name: "header with trailing content is opaque",
			in:   "s3.example.com { # keep\n}\n",
			want: "s3.example.com { # keep\n}\n",
		},
		{
			name: "global options block kept",
			in:   "{\n  email ops@example.com\n}\n\ns3.example.com {\n}\n",
			want: "{\n  email ops@example.com\n}\n",
		},
		{
			name: "several removed blocks",
			in:   "s3.a {\n}\ns3.b {\n}\n" + site + "s3.c {\n}\n",
			want: site,
		},
		{
			name: "stray closing brace does not go negative",
			in:   "}\ns3.example.com {\n}\n" + site,
			want: "}\n" + site,
		},
		{
			name: "empty input",
			in:   "",
			want: "\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, RemoveBlocks(tt.in, s3))
		})
	}
}

func TestRemoveBlocks_Idempotent(t *testing.T) {
	t.Parallel()

	in := site + "s3.example.com {\n  reverse_proxy minio:9000\n}\n\n"
	once := RemoveBlocks(in, HasPrefix("s3."))

	assert.Equal(t, once, RemoveBlocks(once, HasPrefix("s3.")))
}

func TestRemoveBlocks_PredicateSeesLabel(t *testing.T) {
	t.Parallel()

	var seen []string

	in := "a.com {\n  b.com {\n  }\n}\nc.com {\n}\n"
	_ = RemoveBlocks(in, func(label string) bool {
		seen = append(seen, label)

		return false
	})

	assert.Equal(t, []string{"a.com", "c.com"}, seen, "only top-level headers are offered")
}

func TestLabels(t *testing.T) {
	t.Parallel()

	in := "{\n  admin off\n}\nlangfuse.example.com {\n  @x {\n  }\n}\ns3.langfuse.example.com {\n}\n"
	assert.Equal(t, []string{"langfuse.example.com", "s3.langfuse.example.com"}, Labels(in))
	assert.Empty(t, Labels(""))
}

func TestReplaceHost(t *testing.T) {
	t.Parallel()

	in := strings.Join([]string{
		"langfuse.example.com {",
		"  reverse_proxy langfuse-web:3000",
		"}",
		"",
		"s3.langfuse.example.com {",
		"  reverse_proxy minio:9000",
		"}",
		"",
	}, "\n")

	got := ReplaceHost(in, "langfuse.example.com", "obs.acme.io")
	got = ReplaceHost(got, "s3.langfuse.example.com", "s3.obs.acme.io")

	want := strings.Join([]string{
		"obs.acme.io {",
		"  reverse_proxy langfuse-web:3000",
		"}",
		"",
		"s3.obs.acme.io {",
		"  reverse_proxy minio:9000",
		"}",
		"",
	}, "\n")

	assert.Equal(t, want, got)
	assert.Equal(t, in, ReplaceHost(in, "example.com", "x.io"), "partial labels are not replaced")
}

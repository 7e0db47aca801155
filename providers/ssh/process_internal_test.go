package ssh

import (
	"testing"

	"github.com/ruffel/vpsops"
	"github.com/stretchr/testify/assert"
)

func TestBuildEnvPrefix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		env  []string
		want string
	}{
		{"empty", nil, ""},
		{"plain values", []string{"FOO=bar", "BAZ=qux"}, "export FOO=bar; export BAZ=qux; "},
		{"quoting", []string{"MSG=don't stop"}, "export MSG='don'\\''t stop'; "},
		{"empty value", []string{"EMPTY="}, "export EMPTY=''; "},
		{"malformed skipped", []string{"INVALID"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, buildEnvPrefix(tt.env))
		})
	}
}

func TestBuildDirPrefix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		dir  string
		want string
	}{
		{"empty", "", ""},
		{"plain", "/opt/langfuse", "cd /opt/langfuse && "},
		{"space", "/srv/my stack", "cd '/srv/my stack' && "},
		{"quote", "/tmp/O'Neil", "cd '/tmp/O'\\''Neil' && "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, buildDirPrefix(tt.dir))
		})
	}
}

func TestBuildFullCommand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cmd  string
		args []string
		dir  string
		env  []string
		want string
	}{
		{
			name: "env and dir",
			cmd:  "docker",
			args: []string{"compose", "up", "-d"},
			dir:  "/opt/langfuse",
			env:  []string{"COMPOSE_PROJECT_NAME=langfuse"},
			want: "export COMPOSE_PROJECT_NAME=langfuse; cd /opt/langfuse && docker compose up -d",
		},
		{
			name: "semicolon with space",
			cmd:  "echo",
			args: []string{"hello; whoami"},
			want: "echo 'hello; whoami'",
		},
		{
			name: "semicolon no space",
			cmd:  "echo",
			args: []string{"hello;whoami"},
			want: "echo 'hello;whoami'",
		},
		{
			name: "embedded single quote",
			cmd:  "echo",
			args: []string{"it's"},
			want: "echo 'it'\\''s'",
		},
		{
			name: "pipe",
			cmd:  "echo",
			args: []string{"foo|bar"},
			want: "echo 'foo|bar'",
		},
		{
			name: "backticks",
			cmd:  "echo",
			args: []string{"`whoami`"},
			want: "echo '`whoami`'",
		},
		{
			name: "command substitution",
			cmd:  "echo",
			args: []string{"$(id -u)"},
			want: "echo '$(id -u)'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cmd := vpsops.NewCommand(tt.cmd, tt.args...)
			cmd.Dir = tt.dir
			cmd.Env = tt.env

			assert.Equal(t, tt.want, buildFullCommand(cmd))
		})
	}
}

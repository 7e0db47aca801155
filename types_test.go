package vpsops

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResult_Success(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		result Result
		want   bool
	}{
		{
			name:   "success",
			result: Result{ExitCode: 0, Error: nil},
			want:   true,
		},
		{
			name:   "non-zero exit",
			result: Result{ExitCode: 1, Error: nil},
			want:   false,
		},
		{
			name:   "with error",
			result: Result{ExitCode: 0, Error: errors.New("test error")},
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.result.Success())
		})
	}
}

func TestTargetOS(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "linux", OSLinux.String())
	assert.Equal(t, "unknown", OSUnknown.String())

	// Hosts that fail detection still get a POSIX shell.
	for _, target := range []TargetOS{OSLinux, OSUnknown} {
		got := target.ShellCommand("set -eu; docker compose ps")
		assert.Equal(t, &Command{Cmd: "sh", Args: []string{"-c", "set -eu; docker compose ps"}}, got)
	}
}

func TestCommand_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cmd  Command
		want string
	}{
		{
			name: "command only",
			cmd:  Command{Cmd: "ls"},
			want: "ls",
		},
		{
			name: "command with args",
			cmd:  Command{Cmd: "ls", Args: []string{"-la", "/tmp"}},
			want: "ls -la /tmp",
		},
		{
			name: "args with spaces",
			cmd:  Command{Cmd: "echo", Args: []string{"hello world", "foo"}},
			want: "echo \"hello world\" foo",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.cmd.String())
		})
	}
}

func TestCommand_ParseCommand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cmdStr  string
		want    Command
		wantErr bool
	}{
		{
			name:   "simple command",
			cmdStr: "ls",
			want:   Command{Cmd: "ls", Args: []string{}},
		},
		{
			name:   "command with args",
			cmdStr: "ls -la /tmp",
			want:   Command{Cmd: "ls", Args: []string{"-la", "/tmp"}},
		},
		{
			name:   "quoted args",
			cmdStr: `echo "hello world" foo`,
			want:   Command{Cmd: "echo", Args: []string{"hello world", "foo"}},
		},
		{
			name:   "extra spaces",
			cmdStr: "  ls   -la   /tmp  ",
			want:   Command{Cmd: "ls", Args: []string{"-la", "/tmp"}},
		},
		{
			name:    "empty command",
			cmdStr:  "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseCommand(tt.cmdStr)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, &tt.want, got)
			}
		})
	}
}

func TestNewCommand(t *testing.T) {
	t.Parallel()

	cmd := NewCommand("ls", "-la", "/tmp")
	assert.Equal(t, "ls", cmd.Cmd)
	assert.Equal(t, []string{"-la", "/tmp"}, cmd.Args)
}

func TestExitError_Error(t *testing.T) {
	t.Parallel()

	t.Run("with command", func(t *testing.T) {
		t.Parallel()

		e := &ExitError{
			Command:  &Command{Cmd: "ls", Args: []string{"-la"}},
			ExitCode: 1,
		}
		assert.Equal(t, "command \"ls -la\" exited with code 1", e.Error())
	})

	t.Run("without command", func(t *testing.T) {
		t.Parallel()

		e := &ExitError{
			ExitCode: 1,
		}

		assert.NotPanics(t, func() {
			assert.Equal(t, "command exited with code 1", e.Error())
		})
	})

	t.Run("with stderr", func(t *testing.T) {
		t.Parallel()

		e := &ExitError{
			Command:  &Command{Cmd: "docker", Args: []string{"compose", "ps"}},
			ExitCode: 125,
			Stderr:   []byte("  no such service\n"),
		}
		assert.Equal(t, "command \"docker compose ps\" exited with code 125: no such service", e.Error())
	})
}

func TestShellQuote(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"", "''"},
		{"ls", "ls"},
		{"/opt/langfuse/.env", "/opt/langfuse/.env"},
		{"user@host:22", "user@host:22"},
		{"hello world", "'hello world'"},
		{"hello; whoami", "'hello; whoami'"},
		{"it's", `'it'\''s'`},
		{"$HOME", "'$HOME'"},
		{"a\nb", "'a\nb'"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ShellQuote(tt.in))
		})
	}
}

func TestCommand_ShellString(t *testing.T) {
	t.Parallel()

	cmd := NewCommand("docker", "compose", "--env-file", "/opt/langfuse/.env", "exec", "caddy", "sh", "-c", "echo $X")
	assert.Equal(t, "docker compose --env-file /opt/langfuse/.env exec caddy sh -c 'echo $X'", cmd.ShellString())
}

package vpsops

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/shlex"
)

// Command configures a process execution.
type Command struct {
	Cmd  string   // Binary name or path to executable
	Args []string // Arguments to pass to the binary
	Env  []string // Environment variables in "KEY=VALUE" format
	Dir  string   // Working directory for execution

	// Standard streams. If nil, defaults to empty/discard.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Tty allocates a PTY. Useful for interactive commands (e.g. sudo).
	Tty bool
}

// Validate checks that the command is well-formed.
// Returns an error if the command is nil or has an empty binary.
func (c *Command) Validate() error {
	if c == nil {
		return errors.New("command cannot be nil")
	}

	if strings.TrimSpace(c.Cmd) == "" {
		return errors.New("command binary cannot be empty")
	}

	return nil
}

// NewCommand creates a new Command with the given binary and arguments.
func NewCommand(binary string, args ...string) *Command {
	return &Command{
		Cmd:  binary,
		Args: args,
	}
}

// String returns a simplified, human readable representation of the command.
// Use ShellString when the result is handed to a shell.
func (c *Command) String() string {
	if len(c.Args) == 0 {
		return c.Cmd
	}

	var b strings.Builder
	b.WriteString(c.Cmd)

	for _, arg := range c.Args {
		b.WriteString(" ")

		if strings.Contains(arg, " ") {
			fmt.Fprintf(&b, "%q", arg)
		} else {
			b.WriteString(arg)
		}
	}

	return b.String()
}

// ShellString returns the command as a POSIX shell command line.
// Every argument that is not made of safe characters is single-quoted.
func (c *Command) ShellString() string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, ShellQuote(c.Cmd))

	for _, arg := range c.Args {
		parts = append(parts, ShellQuote(arg))
	}

	return strings.Join(parts, " ")
}

// ShellQuote quotes s for a POSIX shell.
// Strings made only of letters, digits and "-_./:=@%+," are returned unchanged.
func ShellQuote(s string) string {
	if s == "" {
		return "''"
	}

	safe := true

	for _, r := range s {
		if !isShellSafe(r) {
			safe = false

			break
		}
	}

	if safe {
		return s
	}

	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func isShellSafe(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case strings.ContainsRune("-_./:=@%+,", r):
		return true
	default:
		return false
	}
}

// ParseCommand parses a shell command string into a Command struct using shlex.
// It handles quoted arguments correctly.
func ParseCommand(cmdStr string) (*Command, error) {
	parts, err := shlex.Split(cmdStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse command: %w", err)
	}

	if len(parts) == 0 {
		return nil, errors.New("empty command")
	}

	return &Command{
		Cmd:  parts[0],
		Args: parts[1:],
	}, nil
}

// Result contains metadata about a completed command execution.
type Result struct {
	ExitCode int           // Process exit code (0 indicates success)
	Duration time.Duration // Time taken for execution
	Error    error         // Launch/Transport error (distinct from non-zero exit code)
}

// BufferedResult extends Result to include captured stdout/stderr content.
// Returned by Executor.RunBuffered.
type BufferedResult struct {
	Result

	Stdout []byte
	Stderr []byte
}

// Success returns true if the command completed with exit code 0 and no transport error.
func (r *Result) Success() bool {
	return r.ExitCode == 0 && r.Error == nil
}

// TargetOS identifies the operating system of the target environment.
type TargetOS int

const (
	// OSUnknown represents an unidentified operating system.
	OSUnknown TargetOS = iota
	// OSLinux represents the Linux kernel.
	OSLinux
)

func (os TargetOS) String() string {
	if os == OSLinux {
		return "linux"
	}

	return "unknown"
}

// ShellCommand constructs "sh -c <script>".
func (TargetOS) ShellCommand(script string) *Command {
	return &Command{
		Cmd:  "sh",
		Args: []string{"-c", script},
	}
}

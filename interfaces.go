// Package vpsops provides the remote command and file port used to operate a
// deployed stack on a virtual private server.
//
// # Core Interfaces
//
// - Environment: The connection to a host (SSH in production, a mock in tests).
// - Process: A running command handle (allows Wait, Signal, Close).
//
// # Streaming
//
// Commands stream by default. Attach an `io.Writer` to `Command.Stdout` to capture output,
// or use the `Executor` wrapper for the common "run and give me the output" case.
//
// # Files
//
// Configuration files are read and written as whole byte slices through ReadFile and
// WriteFile. Writes replace the destination atomically. `Executor.Rewrite` builds the
// read-transform-compare-write cycle on top of them so unchanged files are never touched.
package vpsops

import (
	"context"
	"io"
	"os"
)

// Environment abstracts the host where commands are executed and files live.
type Environment interface {
	io.Closer

	// Run executes a command synchronously.
	// Returns the result (exit code, error). Output is not captured by default; use Command.Stdout/Stderr.
	Run(ctx context.Context, cmd *Command) (*Result, error)

	// Start initiates a command asynchronously.
	// The caller manages the returned Process (Wait/Signal) and must ensure resources are released via
	// either Wait() or Close().
	Start(ctx context.Context, cmd *Command) (Process, error)

	// TargetOS returns the operating system of the target environment.
	TargetOS() TargetOS

	// Upload copies a local file or directory to the remote destination.
	//
	// It creates any missing parent directories at the destination.
	Upload(ctx context.Context, localPath, remotePath string, opts ...FileOption) error

	// Download copies a remote file or directory to the local destination.
	//
	// It creates any missing parent directories at the local destination.
	Download(ctx context.Context, remotePath, localPath string, opts ...FileOption) error

	// ReadFile returns the full content of a remote file.
	ReadFile(ctx context.Context, remotePath string) ([]byte, error)

	// WriteFile replaces the content of a remote file.
	//
	// The data is written to a temporary sibling first and renamed over the destination,
	// so readers never observe a partially written file.
	WriteFile(ctx context.Context, remotePath string, data []byte, opts ...FileOption) error

	// LookPath searches for an executable named file in the directories named by
	// the PATH environment variable.
	LookPath(ctx context.Context, file string) (string, error)
}

// Process represents a command that has been started but not yet completed.
type Process interface {
	io.Closer

	// Wait blocks until the process exits.
	// Returns an error if the exit code is non-zero.
	Wait() error

	// Result returns metadata (exit code, termination status) (only valid after Wait).
	Result() *Result

	// Signal sends an OS signal to the process.
	// Note: support for specific signals depends on the underlying provider.
	Signal(sig os.Signal) error
}

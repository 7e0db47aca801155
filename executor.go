package vpsops

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// Executor handles command execution with retry logic, sudo support, and output buffering.
type Executor struct {
	env Environment
}

// NewExecutor creates a new Executor with the given environment.
func NewExecutor(env Environment) *Executor {
	return &Executor{env: env}
}

// Run executes a command, respecting context cancellation and configured retry policies.
func (e *Executor) Run(ctx context.Context, cmd *Command, opts ...ExecOption) (*Result, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	cfg := NewExecConfig(opts...)

	if cfg.Sudo {
		cmd = applySudo(cmd)
	}

	var (
		lastRes *Result
		lastErr error
	)

	for i := range cfg.RetryAttempts {
		if i > 0 {
			err := e.wait(ctx, cfg.RetryDelay)
			if err != nil {
				return nil, err
			}
		}

		lastRes, lastErr = e.env.Run(ctx, cmd)

		if lastErr == nil && (lastRes == nil || lastRes.Success()) {
			return lastRes, nil
		}
	}

	if lastErr != nil {
		var exitErr *ExitError
		if cfg.RetryAttempts == 1 || errors.As(lastErr, &exitErr) {
			return lastRes, lastErr
		}

		return lastRes, fmt.Errorf("command execution failed after %d attempts: %w", cfg.RetryAttempts, lastErr)
	}

	if lastRes != nil && lastRes.ExitCode != 0 {
		return lastRes, &ExitError{
			Command:  cmd,
			ExitCode: lastRes.ExitCode,
		}
	}

	return lastRes, nil
}

// RunBuffered executes a command and captures both Stdout and Stderr.
func (e *Executor) RunBuffered(ctx context.Context, cmd *Command, opts ...ExecOption) (*BufferedResult, error) {
	var stdoutBuf, stderrBuf bytes.Buffer

	cmdCopy := *cmd
	cmdCopy.Stdout = &stdoutBuf
	cmdCopy.Stderr = &stderrBuf

	result, err := e.Run(ctx, &cmdCopy, opts...)

	bufResult := &BufferedResult{
		Stdout: stdoutBuf.Bytes(),
		Stderr: stderrBuf.Bytes(),
	}
	if result != nil {
		bufResult.Result = *result
	}

	// Attach stderr to ExitError for context
	if err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			exitErr.Stderr = bufResult.Stderr
			bufResult.ExitCode = exitErr.ExitCode
		}
	}

	return bufResult, err
}

// RunShell executes a shell command string using the target OS's default shell.
func (e *Executor) RunShell(ctx context.Context, cmdStr string, opts ...ExecOption) (*BufferedResult, error) {
	cmd := e.env.TargetOS().ShellCommand(cmdStr)

	return e.RunBuffered(ctx, cmd, opts...)
}

// Check runs a shell script with "set -eu" and fails on any non-zero exit.
// The returned error carries the script's stderr.
func (e *Executor) Check(ctx context.Context, script string, opts ...ExecOption) (string, error) {
	res, err := e.RunShell(ctx, "set -eu; "+script, opts...)
	if err != nil {
		return "", err
	}

	return string(res.Stdout), nil
}

// LookPath resolves an executable path using the underlying environment's LookPath strategy.
func (e *Executor) LookPath(ctx context.Context, file string) (string, error) {
	return e.env.LookPath(ctx, file)
}

// Start initiates a command asynchronously.
// Caller is responsible for Process.Wait().
func (e *Executor) Start(ctx context.Context, cmd *Command) (Process, error) {
	return e.env.Start(ctx, cmd)
}

// RunLineStream streams stdout line-by-line to onLine.
// Useful for live logging. Overrides Command.Stdout. WithSudo applies; a
// stream is never retried.
func (e *Executor) RunLineStream(ctx context.Context, cmd *Command, onLine func(string), opts ...ExecOption) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	if NewExecConfig(opts...).Sudo {
		cmd = applySudo(cmd)
	}

	pr, pw := io.Pipe()

	cmdCopy := *cmd
	cmdCopy.Stdout = pw
	cmd = &cmdCopy

	proc, err := e.Start(ctx, cmd)
	if err != nil {
		return err
	}

	defer func() { _ = proc.Close() }()

	scanErrCh := make(chan error, 1)

	go func() {
		defer func() { _ = pr.Close() }()

		scanner := bufio.NewScanner(pr)
		for scanner.Scan() {
			onLine(scanner.Text())
		}

		scanErrCh <- scanner.Err()
	}()

	waitErr := proc.Wait()

	_ = pw.Close() // Close the write end to signal the scanner to stop

	scanErr := <-scanErrCh

	if waitErr != nil {
		return waitErr
	}

	if scanErr != nil {
		return fmt.Errorf("scan error: %w", scanErr)
	}

	return nil
}

// TargetOS returns the operating system of the underlying environment.
func (e *Executor) TargetOS() TargetOS {
	return e.env.TargetOS()
}

// Upload copies a local file or directory to the remote destination.
// It delegates directly to the underlying Environment.
func (e *Executor) Upload(ctx context.Context, localPath, remotePath string, opts ...FileOption) error {
	return e.env.Upload(ctx, localPath, remotePath, opts...)
}

// Download copies a remote file or directory to the local destination.
// It delegates directly to the underlying Environment.
func (e *Executor) Download(ctx context.Context, remotePath, localPath string, opts ...FileOption) error {
	return e.env.Download(ctx, remotePath, localPath, opts...)
}

// ReadFile returns the content of a remote file.
func (e *Executor) ReadFile(ctx context.Context, remotePath string) ([]byte, error) {
	data, err := e.env.ReadFile(ctx, remotePath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", remotePath, err)
	}

	return data, nil
}

// WriteFile replaces the content of a remote file.
func (e *Executor) WriteFile(ctx context.Context, remotePath string, data []byte, opts ...FileOption) error {
	if err := e.env.WriteFile(ctx, remotePath, data, opts...); err != nil {
		return fmt.Errorf("write %s: %w", remotePath, err)
	}

	return nil
}

// TransformFunc rewrites the text of a file.
type TransformFunc func(text string) string

// Rewrite reads remotePath, passes its text through fn and writes the result back
// only when it differs from the original. It reports whether a write happened.
func (e *Executor) Rewrite(ctx context.Context, remotePath string, fn TransformFunc, opts ...FileOption) (bool, error) {
	data, err := e.ReadFile(ctx, remotePath)
	if err != nil {
		return false, err
	}

	original := string(data)

	updated := fn(original)
	if updated == original {
		return false, nil
	}

	if err := e.WriteFile(ctx, remotePath, []byte(updated), opts...); err != nil {
		return false, err
	}

	return true, nil
}

// applySudo returns cmd as "sudo -n -- cmd args...".
func applySudo(cmd *Command) *Command {
	newCmd := *cmd
	newCmd.Args = append([]string{"-n", "--", cmd.Cmd}, cmd.Args...)
	newCmd.Cmd = "sudo"

	return &newCmd
}

func (e *Executor) wait(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

package ssh

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/ruffel/vpsops"
	"golang.org/x/crypto/ssh"
)

// exitCodeUnknown is reported when the session ended without an exit status,
// for example because the connection dropped.
const exitCodeUnknown = 255

var errProcessClosed = errors.New("process closed")

// Process implements vpsops.Process for a single SSH session.
type Process struct {
	env     *Environment
	session *ssh.Session
	cmd     *vpsops.Command

	result *vpsops.Result
	mu     sync.RWMutex
	done   chan struct{}
	closed bool
}

// Wait blocks until the command completes.
// A non-zero exit status is returned as *vpsops.ExitError; anything else that
// ended the session is a *vpsops.TransportError.
func (p *Process) Wait() error {
	p.mu.RLock()

	if p.closed {
		p.mu.RUnlock()

		return errProcessClosed
	}

	p.mu.RUnlock()

	<-p.done

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.result.Error == nil {
		return nil
	}

	var exitErr *ssh.ExitError
	if errors.As(p.result.Error, &exitErr) {
		return &vpsops.ExitError{
			Command:  p.cmd,
			ExitCode: exitErr.ExitStatus(),
			Cause:    p.result.Error,
		}
	}

	return &vpsops.TransportError{Command: p.cmd, Err: p.result.Error}
}

// Result returns the command execution result. It is empty until Wait returns.
func (p *Process) Result() *vpsops.Result {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.result == nil {
		return &vpsops.Result{}
	}

	res := *p.result

	return &res
}

// Signal sends Interrupt or Kill to the remote process.
func (p *Process) Signal(sig os.Signal) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed || p.session == nil {
		return errProcessClosed
	}

	var sshSig ssh.Signal

	switch sig {
	case os.Interrupt:
		sshSig = ssh.SIGINT
	case os.Kill:
		sshSig = ssh.SIGKILL
	default:
		return fmt.Errorf("signal %v over ssh: %w", sig, vpsops.ErrNotSupported)
	}

	return p.session.Signal(sshSig)
}

// Close terminates the SSH session.
func (p *Process) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}

	p.closed = true

	if p.session != nil {
		return p.session.Close()
	}

	return nil
}

func (p *Process) start(ctx context.Context) error {
	p.session.Stdout = p.cmd.Stdout
	p.session.Stderr = p.cmd.Stderr
	p.session.Stdin = p.cmd.Stdin

	if p.cmd.Tty {
		if err := p.session.RequestPty("xterm", 80, 40, buildTerminalModes()); err != nil {
			return fmt.Errorf("request for pty failed: %w", err)
		}
	}

	startTime := time.Now()

	if err := p.session.Start(buildFullCommand(p.cmd)); err != nil {
		return err
	}

	go p.wait(ctx, startTime)

	return nil
}

func (p *Process) wait(ctx context.Context, startTime time.Time) {
	defer close(p.done)
	defer p.env.decrementActive()

	finished := make(chan struct{})

	go func() {
		select {
		case <-ctx.Done():
			_ = p.Signal(os.Kill)
			_ = p.Close()
		case <-finished:
		}
	}()

	err := p.session.Wait()

	close(finished)

	var exitCode int

	if err != nil {
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitStatus()
		} else {
			exitCode = exitCodeUnknown
		}
	}

	p.mu.Lock()
	p.result = &vpsops.Result{
		ExitCode: exitCode,
		Duration: time.Since(startTime),
		Error:    err,
	}
	p.mu.Unlock()
}

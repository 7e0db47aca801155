package ssh

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/ruffel/vpsops"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

var _ vpsops.Environment = (*Environment)(nil)

// Environment implements vpsops.Environment over a single SSH connection.
// Every command runs in its own session; every file operation opens its own
// SFTP client.
type Environment struct {
	config Config
	client *ssh.Client
	mu     sync.Mutex
	active int
	closed bool
}

func loadPrivateKeyAuth(keyPath string) (ssh.AuthMethod, error) {
	if keyPath == "" {
		return nil, nil //nolint:nilnil // no key configured
	}

	keyBytes, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key file: %w", err)
	}

	signer, err := ssh.ParsePrivateKey(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key file: %w", err)
	}

	return ssh.PublicKeys(signer), nil
}

// loadAgentAuth returns nil when the agent is disabled or unreachable.
func loadAgentAuth(ctx context.Context, useAgent bool) ssh.AuthMethod {
	if !useAgent {
		return nil
	}

	socket := os.Getenv("SSH_AUTH_SOCK")
	if socket == "" {
		return nil
	}

	conn, err := (&net.Dialer{Timeout: 500 * time.Millisecond}).DialContext(ctx, "unix", socket)
	if err != nil {
		return nil
	}

	return ssh.PublicKeysCallback(agent.NewClient(conn).Signers)
}

// New establishes a new SSH connection configured by opts.
func New(opts ...Option) (*Environment, error) {
	return NewContext(context.Background(), opts...)
}

// NewContext is New with a context bounding the TCP dial.
func NewContext(ctx context.Context, opts ...Option) (*Environment, error) {
	var c Config
	for _, o := range opts {
		o(&c)
	}

	c = c.WithDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}

	clientConfig, err := c.ToClientConfig()
	if err != nil {
		return nil, err
	}

	keyAuth, err := loadPrivateKeyAuth(c.PrivateKeyPath)
	if err != nil {
		return nil, err
	}

	if keyAuth != nil {
		clientConfig.Auth = append(clientConfig.Auth, keyAuth)
	}

	if agentAuth := loadAgentAuth(ctx, c.UseAgent); agentAuth != nil {
		clientConfig.Auth = append(clientConfig.Auth, agentAuth)
	}

	if len(clientConfig.Auth) == 0 {
		return nil, fmt.Errorf("configuration error: no authentication method for %s@%s", c.User, c.Host)
	}

	addr := c.Addr()

	conn, err := (&net.Dialer{Timeout: c.Timeout}).DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial ssh at %s: %w", addr, err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, clientConfig)
	if err != nil {
		_ = conn.Close()

		return nil, fmt.Errorf("ssh handshake with %s failed: %w", addr, err)
	}

	return NewFromClient(ssh.NewClient(sshConn, chans, reqs), c), nil
}

// NewFromClient creates a new SSH environment from an existing client.
func NewFromClient(client *ssh.Client, config Config) *Environment {
	return &Environment{
		config: config.WithDefaults(),
		client: client,
	}
}

// Run executes a command synchronously on the remote server.
// A non-zero exit returns both the Result and a *vpsops.ExitError.
func (e *Environment) Run(ctx context.Context, cmd *vpsops.Command) (*vpsops.Result, error) {
	proc, err := e.Start(ctx, cmd)
	if err != nil {
		return nil, err
	}

	defer func() { _ = proc.Close() }()

	if err := proc.Wait(); err != nil {
		return proc.Result(), err
	}

	return proc.Result(), nil
}

// Start opens a new SSH session for the command.
func (e *Environment) Start(ctx context.Context, cmd *vpsops.Command) (vpsops.Process, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	client, err := e.acquire()
	if err != nil {
		return nil, err
	}

	session, err := client.NewSession()
	if err != nil {
		e.decrementActive()

		return nil, &vpsops.TransportError{Command: cmd, Err: fmt.Errorf("failed to create ssh session: %w", err)}
	}

	process := &Process{
		env:     e,
		session: session,
		cmd:     cmd,
		done:    make(chan struct{}),
	}

	if err := process.start(ctx); err != nil {
		_ = session.Close()

		e.decrementActive()

		return nil, &vpsops.TransportError{Command: cmd, Err: err}
	}

	return process, nil
}

// LookPath resolves file with "command -v" in a remote login shell.
func (e *Environment) LookPath(ctx context.Context, file string) (string, error) {
	var stdout bytes.Buffer

	cmd := e.TargetOS().ShellCommand("command -v " + vpsops.ShellQuote(file))
	cmd.Stdout = &stdout

	res, err := e.Run(ctx, cmd)
	if err != nil {
		if res != nil && res.ExitCode != 0 {
			return "", &exec.Error{Name: file, Err: exec.ErrNotFound}
		}

		return "", err
	}

	p := strings.TrimSpace(stdout.String())
	if p == "" {
		return "", &exec.Error{Name: file, Err: exec.ErrNotFound}
	}

	return p, nil
}

// DialRemote opens a connection from the remote host to addr, for example
// ("unix", "/var/run/docker.sock"). The connection is tunnelled over SSH.
func (e *Environment) DialRemote(ctx context.Context, network, addr string) (net.Conn, error) {
	client, err := e.acquire()
	if err != nil {
		return nil, err
	}

	defer e.decrementActive()

	conn, err := client.DialContext(ctx, network, addr)
	if err != nil {
		return nil, fmt.Errorf("remote dial %s %s: %w", network, addr, err)
	}

	return conn, nil
}

// TargetOS returns the operating system as configured.
func (e *Environment) TargetOS() vpsops.TargetOS {
	return e.config.OS
}

// Close closes the underlying SSH connection.
func (e *Environment) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}

	e.closed = true

	if e.client != nil {
		return e.client.Close()
	}

	return nil
}

// acquire returns the client and counts an active user of it.
// Callers release it with decrementActive.
func (e *Environment) acquire() (*ssh.Client, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, vpsops.ErrEnvironmentClosed
	}

	e.active++

	return e.client, nil
}

func (e *Environment) decrementActive() {
	e.mu.Lock()
	e.active--
	e.mu.Unlock()
}

package mock

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ruffel/vpsops"
)

// File is a file held by a Host.
type File struct {
	Data []byte
	Mode os.FileMode
}

// Reply is the scripted outcome of a command run on a Host.
type Reply struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Err      error // transport failure, returned instead of a result
}

// Call is a command observed by a Host.
type Call struct {
	Line  string // command and arguments joined by single spaces
	Dir   string
	Stdin string
}

type scripted struct {
	match string
	reply Reply
}

// Host is an in-memory vpsops.Environment.
// Commands succeed with no output unless a Reply was registered for them.
type Host struct {
	mu       sync.Mutex
	files    map[string]File
	binaries map[string]string
	replies  []scripted
	calls    []Call
	writes   []string
	closed   bool
}

var _ vpsops.Environment = (*Host)(nil)

// NewHost returns an empty Host.
func NewHost() *Host {
	return &Host{
		files:    make(map[string]File),
		binaries: make(map[string]string),
	}
}

// SetFile stores content at path.
func (h *Host) SetFile(path, content string, mode os.FileMode) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.files[path] = File{Data: []byte(content), Mode: mode}
}

// File returns the file stored at path.
func (h *Host) File(path string) (File, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	f, ok := h.files[path]

	return f, ok
}

// AddBinary makes LookPath resolve name to path.
func (h *Host) AddBinary(name, path string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.binaries[name] = path
}

// Respond scripts the reply for every command whose line contains match.
// The first registered match wins.
func (h *Host) Respond(match string, reply Reply) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.replies = append(h.replies, scripted{match: match, reply: reply})
}

// Calls returns the commands run so far, in order.
func (h *Host) Calls() []Call {
	h.mu.Lock()
	defer h.mu.Unlock()

	return append([]Call(nil), h.calls...)
}

// Ran reports whether any command line contained match.
func (h *Host) Ran(match string) bool {
	for _, c := range h.Calls() {
		if strings.Contains(c.Line, match) {
			return true
		}
	}

	return false
}

// Writes returns the paths written through WriteFile or Upload, in order.
func (h *Host) Writes() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	return append([]string(nil), h.writes...)
}

// Run records cmd and plays back the matching Reply.
func (h *Host) Run(ctx context.Context, cmd *vpsops.Command) (*vpsops.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	call := Call{Line: strings.Join(append([]string{cmd.Cmd}, cmd.Args...), " "), Dir: cmd.Dir}

	if cmd.Stdin != nil {
		in, err := io.ReadAll(cmd.Stdin)
		if err != nil {
			return nil, &vpsops.TransportError{Command: cmd, Err: err}
		}

		call.Stdin = string(in)
	}

	h.mu.Lock()

	if h.closed {
		h.mu.Unlock()

		return nil, vpsops.ErrEnvironmentClosed
	}

	h.calls = append(h.calls, call)

	var reply Reply

	for _, s := range h.replies {
		if strings.Contains(call.Line, s.match) {
			reply = s.reply

			break
		}
	}

	h.mu.Unlock()

	if reply.Err != nil {
		return nil, &vpsops.TransportError{Command: cmd, Err: reply.Err}
	}

	if cmd.Stdout != nil && reply.Stdout != "" {
		_, _ = io.WriteString(cmd.Stdout, reply.Stdout)
	}

	if cmd.Stderr != nil && reply.Stderr != "" {
		_, _ = io.WriteString(cmd.Stderr, reply.Stderr)
	}

	return &vpsops.Result{ExitCode: reply.ExitCode, Duration: time.Millisecond}, nil
}

// Start runs cmd in the background. Output is written to the command's
// streams before Wait returns.
func (h *Host) Start(ctx context.Context, cmd *vpsops.Command) (vpsops.Process, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()

	if closed {
		return nil, vpsops.ErrEnvironmentClosed
	}

	p := &process{done: make(chan struct{})}

	go func() {
		defer close(p.done)

		res, err := h.Run(ctx, cmd)

		switch {
		case err != nil:
			p.err = err
			p.res = &vpsops.Result{ExitCode: -1, Error: err}
		case res.ExitCode != 0:
			p.res = res
			p.err = &vpsops.ExitError{Command: cmd, ExitCode: res.ExitCode}
		default:
			p.res = res
		}
	}()

	return p, nil
}

// ReadFile returns the stored content of remotePath.
func (h *Host) ReadFile(_ context.Context, remotePath string) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, vpsops.ErrEnvironmentClosed
	}

	f, ok := h.files[remotePath]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: remotePath, Err: fs.ErrNotExist}
	}

	return append([]byte(nil), f.Data...), nil
}

// WriteFile stores data at remotePath. Without WithPermissions the previous mode,
// or 0644 for a new file, is kept.
func (h *Host) WriteFile(_ context.Context, remotePath string, data []byte, opts ...vpsops.FileOption) error {
	cfg := vpsops.NewFileConfig(opts...)

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return vpsops.ErrEnvironmentClosed
	}

	mode := cfg.Permissions
	if mode == 0 {
		mode = 0o644
		if prev, ok := h.files[remotePath]; ok {
			mode = prev.Mode
		}
	}

	h.files[remotePath] = File{Data: append([]byte(nil), data...), Mode: mode}
	h.writes = append(h.writes, remotePath)

	return nil
}

// Upload copies a single local file into the Host.
func (h *Host) Upload(ctx context.Context, localPath, remotePath string, opts ...vpsops.FileOption) error {
	info, err := os.Stat(localPath)
	if err != nil {
		return err
	}

	if info.IsDir() {
		return fmt.Errorf("upload %s: directories: %w", localPath, vpsops.ErrNotSupported)
	}

	data, err := os.ReadFile(localPath)
	if err != nil {
		return err
	}

	if vpsops.NewFileConfig(opts...).Permissions == 0 {
		opts = append(opts, vpsops.WithPermissions(info.Mode().Perm()))
	}

	return h.WriteFile(ctx, remotePath, data, opts...)
}

// Download copies a file held by the Host to localPath.
func (h *Host) Download(ctx context.Context, remotePath, localPath string, opts ...vpsops.FileOption) error {
	data, err := h.ReadFile(ctx, remotePath)
	if err != nil {
		return err
	}

	cfg := vpsops.NewFileConfig(opts...)

	mode := cfg.Permissions
	if mode == 0 {
		mode = 0o644
	}

	if cfg.Progress != nil {
		cfg.Progress(int64(len(data)), int64(len(data)))
	}

	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return err
	}

	if err := os.WriteFile(localPath, data, mode); err != nil {
		return err
	}

	return os.Chmod(localPath, mode)
}

// LookPath resolves binaries registered with AddBinary.
func (h *Host) LookPath(_ context.Context, file string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return "", vpsops.ErrEnvironmentClosed
	}

	if p, ok := h.binaries[file]; ok {
		return p, nil
	}

	return "", &exec.Error{Name: file, Err: exec.ErrNotFound}
}

// TargetOS always reports Linux.
func (h *Host) TargetOS() vpsops.TargetOS {
	return vpsops.OSLinux
}

// Close marks the Host closed. Further calls fail with ErrEnvironmentClosed.
func (h *Host) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true

	return nil
}

type process struct {
	done chan struct{}
	res  *vpsops.Result
	err  error
}

func (p *process) Wait() error {
	<-p.done

	return p.err
}

func (p *process) Result() *vpsops.Result {
	<-p.done

	return p.res
}

func (p *process) Signal(os.Signal) error { return vpsops.ErrNotSupported }

func (p *process) Close() error {
	<-p.done

	return nil
}

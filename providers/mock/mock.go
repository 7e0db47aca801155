package mock

import (
	"context"
	"io"
	"os"

	"github.com/ruffel/vpsops"
	"github.com/stretchr/testify/mock"
)

// Environment implements a mock vpsops.Environment using testify/mock.
type Environment struct {
	mock.Mock
}

var _ vpsops.Environment = (*Environment)(nil)

// New creates a new mock environment.
func New() *Environment {
	return &Environment{}
}

// Upload mocks uploading a file to the remote environment.
func (m *Environment) Upload(ctx context.Context, localPath, remotePath string, opts ...vpsops.FileOption) error {
	args := m.Called(ctx, localPath, remotePath, opts)

	return args.Error(0)
}

// Download mocks downloading a file from the remote environment.
func (m *Environment) Download(ctx context.Context, remotePath, localPath string, opts ...vpsops.FileOption) error {
	args := m.Called(ctx, remotePath, localPath, opts)

	return args.Error(0)
}

// Run mocks running a command to completion.
func (m *Environment) Run(ctx context.Context, cmd *vpsops.Command) (*vpsops.Result, error) {
	args := m.Called(ctx, cmd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*vpsops.Result), args.Error(1)
}

// Start mocks starting a command asynchronously.
func (m *Environment) Start(ctx context.Context, cmd *vpsops.Command) (vpsops.Process, error) {
	args := m.Called(ctx, cmd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(vpsops.Process), args.Error(1)
}

// ReadFile mocks reading a remote file.
func (m *Environment) ReadFile(ctx context.Context, remotePath string) ([]byte, error) {
	args := m.Called(ctx, remotePath)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]byte), args.Error(1)
}

// WriteFile mocks replacing a remote file.
func (m *Environment) WriteFile(ctx context.Context, remotePath string, data []byte, opts ...vpsops.FileOption) error {
	args := m.Called(ctx, remotePath, data, opts)

	return args.Error(0)
}

// LookPath mocks resolving an executable on the remote PATH.
func (m *Environment) LookPath(ctx context.Context, file string) (string, error) {
	args := m.Called(ctx, file)

	return args.String(0), args.Error(1)
}

// TargetOS mocks returning the target operating system.
func (m *Environment) TargetOS() vpsops.TargetOS {
	args := m.Called()

	return args.Get(0).(vpsops.TargetOS)
}

// Close mocks closing the environment.
func (m *Environment) Close() error {
	args := m.Called()

	return args.Error(0)
}

// Process implements a mock vpsops.Process using testify/mock.
type Process struct {
	mock.Mock
}

var _ vpsops.Process = (*Process)(nil)

// Wait mocks waiting for the process to complete.
func (m *Process) Wait() error {
	args := m.Called()

	return args.Error(0)
}

// Result mocks returning the process result.
func (m *Process) Result() *vpsops.Result {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}

	return args.Get(0).(*vpsops.Result)
}

// Signal mocks sending a signal to the process.
func (m *Process) Signal(sig os.Signal) error {
	args := m.Called(sig)

	return args.Error(0)
}

// Close mocks closing the process.
func (m *Process) Close() error {
	args := m.Called()

	return args.Error(0)
}

// WriteOutput is a helper to simulate output writing for mocked processes.
// Usage: mockProcess.On("Wait").Run(WriteOutput(cmd.Stdout, "output")).Return(nil).
func WriteOutput(w io.Writer, content string) func(mock.Arguments) {
	return func(args mock.Arguments) {
		if w != nil {
			_, _ = io.WriteString(w, content)
		}
	}
}

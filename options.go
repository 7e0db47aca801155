package vpsops

import (
	"os"
	"time"
)

// ExecConfig holds configuration derived from options.
type ExecConfig struct {
	Sudo          bool
	RetryAttempts int
	RetryDelay    time.Duration
}

// ExecOption defines a functional option for execution.
type ExecOption func(*ExecConfig)

// NewExecConfig applies opts on top of a single attempt without sudo.
func NewExecConfig(opts ...ExecOption) ExecConfig {
	cfg := ExecConfig{RetryAttempts: 1}
	for _, o := range opts {
		o(&cfg)
	}

	return cfg
}

// WithSudo runs the command as root through "sudo -n", which fails instead of
// prompting when a password would be needed.
func WithSudo() ExecOption {
	return func(c *ExecConfig) {
		c.Sudo = true
	}
}

// WithRetry enables retry logic for the command execution using linear backoff.
// attempts: Total number of attempts (including the initial one). Must be >= 1.
// delay: Duration to wait between attempts.
func WithRetry(attempts int, delay time.Duration) ExecOption {
	return func(c *ExecConfig) {
		if attempts < 1 {
			attempts = 1
		}

		c.RetryAttempts = attempts
		c.RetryDelay = delay
	}
}

// FileConfig holds configuration for file transfers.
type FileConfig struct {
	Permissions os.FileMode // Destination perms override (0 means preserve/default)
	Recursive   bool        // Default true for generic uploads
	Progress    ProgressFunc
}

// DefaultFileConfig returns defaults.
func DefaultFileConfig() FileConfig {
	return FileConfig{
		Recursive: true,
	}
}

// NewFileConfig applies opts on top of DefaultFileConfig.
func NewFileConfig(opts ...FileOption) FileConfig {
	cfg := DefaultFileConfig()
	for _, o := range opts {
		o(&cfg)
	}

	return cfg
}

// FileOption defines a functional option for file transfers.
type FileOption func(*FileConfig)

// WithPermissions forces specific destination file mode.
func WithPermissions(mode os.FileMode) FileOption {
	return func(c *FileConfig) {
		c.Permissions = mode
	}
}

// ProgressFunc is a callback for tracking file transfer progress.
type ProgressFunc func(current, total int64)

// WithProgress calls fn with progress updates.
func WithProgress(fn ProgressFunc) FileOption {
	return func(c *FileConfig) {
		c.Progress = fn
	}
}

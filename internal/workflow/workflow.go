// Package workflow implements the operations vpsops runs against a server:
// deploying the stack, switching media storage, installing a deploy key and
// reporting status. Every step goes through a vpsops.Executor, so the same
// code runs over SSH and against the in-memory host used in tests.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"charm.land/log/v2"
	"github.com/ruffel/vpsops"
	"github.com/ruffel/vpsops/internal/stack"
	"github.com/ruffel/vpsops/internal/ui"
)

// ErrNoDocker is returned when the server has no docker binary on its PATH.
var ErrNoDocker = errors.New("docker is not installed on the server")

// Defaults for retrying "docker compose pull", which fails on registry hiccups.
const (
	DefaultPullAttempts = 3
	DefaultPullDelay    = 5 * time.Second
)

// Runner carries what every workflow needs.
type Runner struct {
	Exec   *vpsops.Executor
	Log    *log.Logger
	Layout stack.Layout

	// Output receives the lines printed by remote status commands. Nil drops them.
	Output func(line string)

	// Sudo wraps remote commands in "sudo -n". Files still go over SFTP as
	// the login user.
	Sudo bool

	PullAttempts int
	PullDelay    time.Duration
}

// NewRunner returns a Runner for env using the default layout.
func NewRunner(env vpsops.Environment, logger *log.Logger) *Runner {
	return &Runner{
		Exec:   vpsops.NewExecutor(env),
		Log:    logger,
		Layout: stack.DefaultLayout(),

		PullAttempts: DefaultPullAttempts,
		PullDelay:    DefaultPullDelay,
	}
}

func (r *Runner) log() *log.Logger {
	if r.Log == nil {
		return ui.Discard()
	}

	return r.Log
}

func (r *Runner) execOpts(extra ...vpsops.ExecOption) []vpsops.ExecOption {
	if r.Sudo {
		extra = append(extra, vpsops.WithSudo())
	}

	return extra
}

// check runs script through Executor.Check with the runner's options.
func (r *Runner) check(ctx context.Context, script string) (string, error) {
	return r.Exec.Check(ctx, script, r.execOpts()...)
}

func (r *Runner) emit(line string) {
	if r.Output != nil {
		r.Output(line)
	}
}

// Change describes the outcome of rewriting one remote file.
type Change struct {
	Path    string
	Changed bool
	Diff    string // see ui.Diff
}

// rewrite applies fn to the file at path. A dry run only computes the diff.
func (r *Runner) rewrite(ctx context.Context, path string, fn vpsops.TransformFunc, mode os.FileMode, dryRun bool) (Change, error) {
	c := Change{Path: path}

	transform := func(text string) string {
		out := fn(text)
		c.Diff = ui.Diff(text, out)

		return out
	}

	if dryRun {
		data, err := r.Exec.ReadFile(ctx, path)
		if err != nil {
			return c, err
		}

		c.Changed = transform(string(data)) != string(data)

		return c, nil
	}

	changed, err := r.Exec.Rewrite(ctx, path, transform, vpsops.WithPermissions(mode))
	c.Changed = changed

	return c, err
}

func (r *Runner) requireDocker(ctx context.Context) error {
	p, err := r.Exec.LookPath(ctx, "docker")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNoDocker, err)
	}

	r.log().Debug("found docker", "path", p)

	return nil
}

// compose builds "docker compose <args>" run inside dir.
func compose(dir string, args ...string) *vpsops.Command {
	return vpsops.Cmd("docker").Arg("compose").Args(args...).Dir(dir).Build()
}

// RestartCommands are run after the .env or Caddyfile changed: bring the
// project up, then restart the services that read those files.
func RestartCommands(dir string) []*vpsops.Command {
	return []*vpsops.Command{
		compose(dir, "up", "-d"),
		compose(dir, append([]string{"restart"}, stack.RestartServices...)...),
	}
}

// ParseCommands parses configured command lines into commands run inside dir.
func ParseCommands(dir string, lines []string) ([]*vpsops.Command, error) {
	cmds := make([]*vpsops.Command, 0, len(lines))

	for _, line := range lines {
		cmd, err := vpsops.ParseCommand(line)
		if err != nil {
			return nil, fmt.Errorf("command %q: %w", line, err)
		}

		cmd.Dir = dir
		cmds = append(cmds, cmd)
	}

	return cmds, nil
}

// run executes cmd and logs its output at debug level. The returned error
// carries stderr.
func (r *Runner) run(ctx context.Context, cmd *vpsops.Command, opts ...vpsops.ExecOption) error {
	r.log().Info("running", "cmd", cmd.String())

	res, err := r.Exec.RunBuffered(ctx, cmd, r.execOpts(opts...)...)
	if res != nil {
		for _, out := range [][]byte{res.Stdout, res.Stderr} {
			for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
				if line != "" {
					r.log().Debug(line)
				}
			}
		}
	}

	if err != nil {
		return fmt.Errorf("%s: %w", cmd.String(), err)
	}

	return nil
}

// stream runs cmd and hands every stdout line to Output.
func (r *Runner) stream(ctx context.Context, cmd *vpsops.Command) error {
	if err := r.Exec.RunLineStream(ctx, cmd, r.emit, r.execOpts()...); err != nil {
		return fmt.Errorf("%s: %w", cmd.String(), err)
	}

	return nil
}

// showServices prints "docker compose ps". Failures are logged, not returned.
func (r *Runner) showServices(ctx context.Context) {
	if err := r.stream(ctx, compose(r.Layout.Root(), "ps")); err != nil {
		r.log().Warn("could not list services", "err", err)
	}
}

// Package main is the vpsops command line: it deploys and maintains the
// Langfuse stack on a VPS over SSH.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"charm.land/log/v2"
	"github.com/ruffel/vpsops"
	"github.com/ruffel/vpsops/internal/config"
	"github.com/ruffel/vpsops/internal/ui"
	"github.com/ruffel/vpsops/internal/workflow"
	"github.com/ruffel/vpsops/providers/ssh"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	root := newRootCmd(newApp(os.Stdout, os.Stderr, os.Getenv))

	err := root.ExecuteContext(ctx)

	stop()

	if err != nil {
		ui.NewPrinter(os.Stderr).Error(err.Error())
		os.Exit(1)
	}
}

// app holds the state shared by every command.
type app struct {
	stdout io.Writer
	stderr io.Writer
	getenv func(string) string

	configPath string
	verbose    bool
	askPass    bool

	conf config.Config
	log  *log.Logger
	out  *ui.Printer

	// connect opens the server environment. Tests replace it.
	connect func(ctx context.Context) (vpsops.Environment, error)
}

func newApp(stdout, stderr io.Writer, getenv func(string) string) *app {
	a := &app{
		stdout: stdout,
		stderr: stderr,
		getenv: getenv,
		log:    ui.Discard(),
		out:    ui.NewPrinter(stdout),
	}

	a.connect = a.dial

	return a
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "vpsops",
		Short:         "Operate a self-hosted Langfuse stack on a VPS",
		Long:          `Deploys the Langfuse docker compose stack over SSH, moves media uploads to Cloudflare R2 and manages the CI deploy key.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "config file (default "+config.DefaultPath()+")")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "log every remote command")
	pf.BoolVar(&a.askPass, "ask-pass", false, "prompt for the SSH password")
	config.RegisterFlags(pf)

	root.AddCommand(
		newSwitchMediaCmd(a),
		newDeployCmd(a),
		newDeployKeyCmd(a),
		newStatusCmd(a),
		newKeygenCmd(a),
		newConfigCmd(a),
		newCheckCmd(a),
	)

	return root
}

func (a *app) init(cmd *cobra.Command) error {
	conf, err := config.Load(a.configPath, a.getenv)
	if err != nil {
		return err
	}

	if err := conf.ApplyFlags(cmd.Flags()); err != nil {
		return err
	}

	a.conf = conf
	a.log = ui.NewLogger(a.stderr, a.verbose)

	return nil
}

// dial connects to the configured server over SSH.
func (a *app) dial(ctx context.Context) (vpsops.Environment, error) {
	if a.askPass && a.conf.SSH.Password == "" {
		pass, err := readPassword(a.stderr, a.conf.SSH.Host)
		if err != nil {
			return nil, err
		}

		a.conf.SSH.Password = pass
	}

	opts, err := a.conf.SSHOptions("")
	if err != nil {
		return nil, err
	}

	target := config.ResolveSSH(opts)
	a.log.Debug("connecting", "host", target.Host, "port", target.Port, "user", target.User)

	env, err := ssh.NewContext(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", target.Host, err)
	}

	return env, nil
}

func readPassword(w io.Writer, host string) (string, error) {
	fd := int(os.Stdin.Fd()) //nolint:gosec

	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("--ask-pass needs a terminal: %w", vpsops.ErrNotSupported)
	}

	_, _ = fmt.Fprintf(w, "SSH password for %s: ", host)

	pass, err := term.ReadPassword(fd)

	_, _ = fmt.Fprintln(w)

	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}

	return string(pass), nil
}

// withRunner connects, runs fn with a Runner for the configured layout and
// closes the connection.
func (a *app) withRunner(ctx context.Context, fn func(r *workflow.Runner) error) error {
	env, err := a.connect(ctx)
	if err != nil {
		return err
	}

	defer func() { _ = env.Close() }()

	r := workflow.NewRunner(env, a.log)
	r.Layout = a.conf.Layout()
	r.Sudo = a.conf.SSH.Sudo

	return fn(r)
}

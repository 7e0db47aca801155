package main

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/ruffel/vpsops/internal/dockerapi"
	"github.com/ruffel/vpsops/internal/stack"
	"github.com/ruffel/vpsops/internal/workflow"
	"github.com/spf13/cobra"
)

// remoteDialer is implemented by environments that can open connections on
// the server, such as the SSH provider.
type remoteDialer interface {
	DialRemote(ctx context.Context, network, addr string) (net.Conn, error)
}

func newStatusCmd(a *app) *cobra.Command {
	var (
		api  bool
		opts workflow.StatusOptions
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the deployed configuration and the state of the containers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			if api {
				return a.containers(ctx)
			}

			return a.withRunner(ctx, func(r *workflow.Runner) error {
				r.Output = a.out.Line

				rep, err := r.Status(ctx, opts)
				if err != nil {
					return err
				}

				a.out.Info("Sites: " + strings.Join(rep.Sites, ", "))

				if rep.MediaEndpoint == "" {
					a.out.Info("Media: MinIO")
				} else {
					a.out.Info(fmt.Sprintf("Media: %s (bucket %s)", rep.MediaEndpoint, rep.MediaBucket))
				}

				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&api, "api", false, "list containers through the Docker API instead of the CLI")
	cmd.Flags().IntVar(&opts.LogTail, "tail", workflow.DefaultLogTail, "number of log lines to show")
	cmd.Flags().StringVar(&opts.Service, "service", "caddy", "service whose logs are shown")

	return cmd
}

// containers lists the compose project through the Docker socket of the server.
func (a *app) containers(ctx context.Context) error {
	env, err := a.connect(ctx)
	if err != nil {
		return err
	}

	defer func() { _ = env.Close() }()

	dialer, ok := env.(remoteDialer)
	if !ok {
		return fmt.Errorf("%T cannot reach the docker socket", env)
	}

	cli, err := dockerapi.New(dialer.DialRemote, dockerapi.Config{})
	if err != nil {
		return err
	}

	defer func() { _ = cli.Close() }()

	list, err := cli.ListProject(ctx, stack.Project)
	if err != nil {
		return err
	}

	if len(list) == 0 {
		a.out.Info("No containers for project " + stack.Project)

		return nil
	}

	for _, c := range list {
		a.out.Line(fmt.Sprintf("%-18s %-10s %s", c.Service, c.State, c.Status))
	}

	return nil
}

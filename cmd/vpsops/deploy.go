package main

import (
	"fmt"
	"time"

	"github.com/ruffel/vpsops/internal/stack"
	"github.com/ruffel/vpsops/internal/workflow"
	"github.com/spf13/cobra"
)

func newDeployCmd(a *app) *cobra.Command {
	var (
		bundleDir string
		opts      workflow.DeployOptions
	)

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Upload the compose stack and start it",
		Long: `Uploads docker-compose.yml, the Caddyfile and a generated .env to the stack
directory, then pulls the images and starts the project. An existing complete
.env keeps its secrets.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			bundle, err := stack.LoadBundle(bundleDir)
			if err != nil {
				return err
			}

			opts.Bundle = bundle
			opts.Domains = a.conf.Domains()
			opts.Progress = func(path string, done, total int64) {
				if done == total {
					a.out.Line(fmt.Sprintf("uploaded %s (%d bytes)", path, total))
				}
			}

			a.out.Title("🚀 Deploying Langfuse to " + opts.Domains.Web)

			start := time.Now()

			return a.withRunner(cmd.Context(), func(r *workflow.Runner) error {
				rep, err := r.Deploy(cmd.Context(), opts)
				if err != nil {
					return fmt.Errorf("deployment failed: %w", err)
				}

				if rep.SecretsReused {
					a.out.Info("Kept the secrets of the existing " + r.Layout.Env())
				} else {
					a.out.Info("Generated new secrets in " + r.Layout.Env())
				}

				if !rep.Started {
					a.out.Success("Files uploaded to " + r.Layout.Root())

					return nil
				}

				a.out.Success(fmt.Sprintf("Deployment successful (took %v)", time.Since(start).Round(time.Second)))
				a.out.Line("https://" + opts.Domains.Web)

				return nil
			})
		},
	}

	cmd.Flags().StringVar(&bundleDir, "bundle", "", "directory holding docker-compose.yml and Caddyfile (default: built in)")
	cmd.Flags().BoolVar(&opts.NoStart, "no-start", false, "upload files without starting the stack")
	cmd.Flags().BoolVar(&opts.FreshSecrets, "fresh-secrets", false, "generate new secrets even when the server has them")

	return cmd
}

package main

import (
	"github.com/ruffel/vpsops/internal/workflow"
	"github.com/spf13/cobra"
)

func newSwitchMediaCmd(a *app) *cobra.Command {
	var opts workflow.SwitchMediaOptions

	cmd := &cobra.Command{
		Use:   "switch-media",
		Short: "Store media uploads in Cloudflare R2 instead of MinIO",
		Long: `Points the LANGFUSE_S3_MEDIA_UPLOAD_* settings of the server .env at an R2 bucket,
removes the public s3. site from the Caddyfile and restarts the stack.
Running it twice changes nothing the second time.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.conf.Require("R2_ACCOUNT_ID", "R2_ACCESS_KEY_ID", "R2_SECRET_ACCESS_KEY", "R2_MEDIA_BUCKET"); err != nil {
				return err
			}

			restart, err := workflow.ParseCommands(a.conf.Layout().Root(), a.conf.Restart.Commands)
			if err != nil {
				return err
			}

			opts.R2 = a.conf.R2Bucket()
			opts.Restart = restart

			a.out.Title("☁️  Switching media storage to R2 bucket " + opts.R2.Bucket)

			return a.withRunner(cmd.Context(), func(r *workflow.Runner) error {
				rep, err := r.SwitchMedia(cmd.Context(), opts)
				if err != nil {
					return err
				}

				a.out.Diff(r.Layout.Env(), rep.EnvDiff)
				a.out.Diff(r.Layout.Caddyfile(), rep.CaddyDiff)

				switch {
				case opts.DryRun:
					a.out.Info("Dry run, nothing was written.")
				case rep.Restarted:
					a.out.Success("Media uploads now go to R2")
				default:
					a.out.Success("Configuration updated, restart skipped")
				}

				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "show the changes without writing them")
	cmd.Flags().BoolVar(&opts.NoRestart, "no-restart", false, "do not restart the stack")

	return cmd
}

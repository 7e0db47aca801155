package main

import (
	"fmt"
	"os"

	"github.com/ruffel/vpsops/internal/workflow"
	"github.com/spf13/cobra"
)

func newDeployKeyCmd(a *app) *cobra.Command {
	var pubkey, user string

	cmd := &cobra.Command{
		Use:   "add-deploy-key",
		Short: "Install the CI deploy key for the deploy user",
		Long: `Creates the deploy user, adds it to the docker group, installs the public key
in its authorized_keys and grants its group read access to the stack directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if pubkey != "" {
				a.conf.Deploy.PublicKeyPath = pubkey
			}

			if user != "" {
				a.conf.Deploy.User = user
			}

			if err := a.conf.Require("DEPLOY_PUBKEY_PATH"); err != nil {
				return err
			}

			data, err := os.ReadFile(a.conf.Deploy.PublicKeyPath)
			if err != nil {
				return fmt.Errorf("read public key: %w", err)
			}

			a.out.Title("🔑 Installing deploy key for " + a.conf.Deploy.User)

			return a.withRunner(cmd.Context(), func(r *workflow.Runner) error {
				rep, err := r.AddDeployKey(cmd.Context(), workflow.DeployKeyOptions{
					User:      a.conf.Deploy.User,
					PublicKey: string(data),
				})
				if err != nil {
					return err
				}

				if rep.KeyAdded {
					a.out.Success("Key added to " + rep.AuthorizedKeys)
				} else {
					a.out.Success("Key already present in " + rep.AuthorizedKeys)
				}

				return nil
			})
		},
	}

	cmd.Flags().StringVar(&pubkey, "pubkey", "", "public key file (DEPLOY_PUBKEY_PATH)")
	cmd.Flags().StringVar(&user, "deploy-user", "", "user the CI logs in as (DEPLOY_USER, default deploy)")

	return cmd
}

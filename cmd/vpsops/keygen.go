package main

import (
	"github.com/ruffel/vpsops/internal/config"
	"github.com/ruffel/vpsops/internal/keygen"
	"github.com/spf13/cobra"
)

func newKeygenCmd(a *app) *cobra.Command {
	var dir, name, comment string

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate the ed25519 key pair used by CI to deploy",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if dir == "" {
				dir = a.conf.Deploy.KeyDir
			}

			if comment == "" {
				comment = a.conf.Deploy.KeyComment
			}

			pair, err := keygen.Generate(config.ExpandPath(dir), name, comment)
			if err != nil {
				return err
			}

			a.out.Success("Generated " + pair.Fingerprint)
			a.out.Line("private: " + pair.PrivatePath)
			a.out.Line("public:  " + pair.PublicPath)
			a.out.Info("Store the private key as a CI secret, then run: vpsops add-deploy-key --pubkey " + pair.PublicPath)

			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "out", "", "output directory (default deploy/vps/keys)")
	cmd.Flags().StringVar(&name, "name", config.DefaultKeyName, "private key file name")
	cmd.Flags().StringVar(&comment, "comment", "", "key comment (KEY_COMMENT, default github-actions-deploy)")

	return cmd
}

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/ruffel/vpsops/internal/config"
	"github.com/spf13/cobra"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the configuration file",
	}

	pathCmd := &cobra.Command{
		Use:   "path",
		Short: "Print the configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			a.out.Line(a.path())

			return nil
		},
	}

	var force bool

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the current settings to the configuration file",
		Long:  `Writes the settings resolved from defaults, environment and flags. Passwords and R2 secrets are left out.`,
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			p := a.path()

			if _, err := os.Stat(p); err == nil && !force {
				return fmt.Errorf("%s already exists, use --force to overwrite", p)
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}

			conf := a.conf
			conf.SSH.Password = ""
			conf.R2.SecretAccessKey = ""

			if err := config.Save(p, conf); err != nil {
				return err
			}

			a.out.Success("Wrote " + p)

			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	cmd.AddCommand(pathCmd, initCmd)

	return cmd
}

func (a *app) path() string {
	if a.configPath != "" {
		return a.configPath
	}

	return config.DefaultPath()
}

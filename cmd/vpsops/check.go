package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/ruffel/vpsops"
	"github.com/ruffel/vpsops/porttest"
	"github.com/spf13/cobra"
)

func newCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Run the provider contract suite against the server",
		Long: `Verifies that commands, exit codes and file transfers behave on the server the
way the other commands expect. Scratch files are written under /tmp.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.check(cmd.Context())
		},
	}
}

func (a *app) check(ctx context.Context) error {
	a.out.Title("🔍 Checking the server connection")

	env, err := a.connect(ctx)
	if err != nil {
		return err
	}

	defer func() { _ = env.Close() }()

	var (
		category string
		failed   int
	)

	for _, tc := range porttest.AllContracts() {
		if tc.Category != category {
			category = tc.Category
			a.out.Info(strings.ToUpper(category))
		}

		res, err := a.runContract(ctx, env, tc)
		if err != nil {
			return err
		}

		switch {
		case res.Skipped:
			a.out.Line(fmt.Sprintf("⏭  %s (%s)", tc.Name, res.SkipMsg))
		case res.Passed:
			a.out.Line("✅ " + tc.Name)
		default:
			failed++

			a.out.Line(fmt.Sprintf("❌ %s: %s", tc.Name, res.ErrMsg))
		}
	}

	if _, err := vpsops.NewExecutor(env).Check(ctx, "rm -rf /tmp/vpsops-contract-*"); err != nil {
		a.log.Warn("cleanup failed", "err", err)
	}

	if failed > 0 {
		return fmt.Errorf("%d contracts failed", failed)
	}

	a.out.Success("The server behaves as expected")

	return nil
}

// runContract runs tc on env, or on a dedicated connection when tc closes it.
func (a *app) runContract(ctx context.Context, env vpsops.Environment, tc porttest.TestCase) (porttest.Result, error) {
	if !tc.Closes {
		return porttest.Execute(ctx, tc, env), nil
	}

	own, err := a.connect(ctx)
	if err != nil {
		return porttest.Result{}, err
	}

	defer func() { _ = own.Close() }()

	return porttest.Execute(ctx, tc, own), nil
}

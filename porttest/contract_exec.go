package porttest

import (
	"strings"

	"github.com/ruffel/vpsops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const exitCode = 13

func hasShell(t T, env vpsops.Environment) (bool, string) {
	if _, err := env.LookPath(t.Context(), "sh"); err != nil {
		return false, "no sh on PATH"
	}

	return true, ""
}

func execContracts() []TestCase {
	return []TestCase{
		{
			Category:    CategoryExec,
			Name:        "run-nonzero-returns-exiterror",
			Description: "Run non-zero failures must return *vpsops.ExitError with the exit code",
			Prereq:      hasShell,
			Run: func(t T, env vpsops.Environment) {
				_, err := env.Run(t.Context(), env.TargetOS().ShellCommand("exit 13"))
				require.Error(t, err)

				var exitErr *vpsops.ExitError
				require.ErrorAs(t, err, &exitErr)
				assert.Equal(t, exitCode, exitErr.ExitCode)
			},
		},
		{
			Category:    CategoryExec,
			Name:        "start-wait-nonzero-returns-exiterror",
			Description: "Wait non-zero failures must return *vpsops.ExitError",
			Prereq:      hasShell,
			Run: func(t T, env vpsops.Environment) {
				proc, err := env.Start(t.Context(), env.TargetOS().ShellCommand("exit 13"))
				require.NoError(t, err)

				defer func() { _ = proc.Close() }()

				var exitErr *vpsops.ExitError
				require.ErrorAs(t, proc.Wait(), &exitErr)
				assert.Equal(t, exitCode, exitErr.ExitCode)
			},
		},
		{
			Category:    CategoryExec,
			Name:        "stdin-passthrough",
			Description: "Command.Stdin reaches the remote process",
			Prereq:      hasShell,
			Run: func(t T, env vpsops.Environment) {
				cmd := vpsops.Cmd("cat").Input("ssh-ed25519 AAAA deploy\n").Build()

				res, err := vpsops.NewExecutor(env).RunBuffered(t.Context(), cmd)
				require.NoError(t, err)
				assert.Equal(t, "ssh-ed25519 AAAA deploy\n", string(res.Stdout))
			},
		},
		{
			Category:    CategoryExec,
			Name:        "check-carries-stderr",
			Description: "Check stops at the first failing statement and its error includes stderr",
			Prereq:      hasShell,
			Run: func(t T, env vpsops.Environment) {
				out, err := vpsops.NewExecutor(env).Check(t.Context(), "echo first; false; echo never")
				require.Error(t, err)
				assert.Empty(t, out)

				_, err = vpsops.NewExecutor(env).Check(t.Context(), "echo broken >&2; exit 2")
				require.Error(t, err)
				assert.Contains(t, err.Error(), "broken")
			},
		},
		{
			Category:    CategoryExec,
			Name:        "shell-quote-literal",
			Description: "ShellQuote output is read back literally by the remote shell",
			Prereq:      hasShell,
			Run: func(t T, env vpsops.Environment) {
				value := `it's "$HOME" and ; rm -rf /`

				out, err := vpsops.NewExecutor(env).Check(t.Context(), "printf %s "+vpsops.ShellQuote(value))
				require.NoError(t, err)
				assert.Equal(t, value, out)
			},
		},
		{
			Category:    CategoryExec,
			Name:        "dir-applied",
			Description: "Command.Dir sets the working directory",
			Prereq:      hasShell,
			Run: func(t T, env vpsops.Environment) {
				res, err := vpsops.NewExecutor(env).RunBuffered(t.Context(), vpsops.Cmd("pwd").Dir("/tmp").Build())
				require.NoError(t, err)
				assert.Equal(t, "/tmp", strings.TrimSpace(string(res.Stdout)))
			},
		},
		{
			Category:    CategoryExec,
			Name:        "lookpath-missing",
			Description: "LookPath fails for a binary that does not exist",
			Run: func(t T, env vpsops.Environment) {
				_, err := env.LookPath(t.Context(), "vpsops-no-such-binary")
				require.Error(t, err)
			},
		},
	}
}

package porttest

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/ruffel/vpsops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func environmentContracts() []TestCase {
	return []TestCase{
		{
			Category:    CategoryEnvironment,
			Name:        "close-idempotent",
			Description: "Close can be called more than once",
			Closes:      true,
			Run: func(_ T, env vpsops.Environment) {
				_ = env.Close()
				_ = env.Close()
			},
		},
		{
			Category:    CategoryEnvironment,
			Name:        "closed-refuses-work",
			Description: "Every operation on a closed environment fails",
			Closes:      true,
			Run: func(t T, env vpsops.Environment) {
				require.NoError(t, env.Close())

				ctx := t.Context()

				_, err := env.Run(ctx, vpsops.NewCommand("true"))
				assert.Error(t, err, "Run")

				_, err = env.Start(ctx, vpsops.NewCommand("true"))
				assert.Error(t, err, "Start")

				_, err = env.ReadFile(ctx, remoteBase(t)+".env")
				assert.Error(t, err, "ReadFile")

				err = env.WriteFile(ctx, remoteBase(t)+".env", []byte("A=1\n"))
				assert.Error(t, err, "WriteFile")

				_, err = env.LookPath(ctx, "sh")
				assert.Error(t, err, "LookPath")

				src := filepath.Join(t.TempDir(), "Caddyfile")
				require.NoError(t, os.WriteFile(src, []byte("x\n"), 0o644))

				err = env.Upload(ctx, src, remoteBase(t)+".caddy")
				assert.Error(t, err, "Upload")
			},
		},
		{
			Category:    CategoryEnvironment,
			Name:        "invalid-command",
			Description: "Run rejects a command with an empty binary before touching the host",
			Run: func(t T, env vpsops.Environment) {
				_, err := env.Run(t.Context(), &vpsops.Command{Cmd: "  "})
				require.Error(t, err)

				var exitErr *vpsops.ExitError
				assert.False(t, errors.As(err, &exitErr))
			},
		},
		{
			Category:    CategoryEnvironment,
			Name:        "target-os-known",
			Description: "TargetOS reports a concrete operating system",
			Run: func(t T, env vpsops.Environment) {
				assert.NotEqual(t, vpsops.OSUnknown, env.TargetOS())
			},
		},
	}
}

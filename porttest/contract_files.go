package porttest

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/ruffel/vpsops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const privateMode = 0o600

// remoteBase returns a per-contract scratch path on the remote host.
func remoteBase(t T) string {
	return "/tmp/vpsops-contract-" + strings.ReplaceAll(t.Name(), "/", "_")
}

//nolint:funlen // Contract registration function; length comes from the cases.
func fileContracts() []TestCase {
	return []TestCase{
		{
			Category:    CategoryFiles,
			Name:        "read-missing-not-exist",
			Description: "ReadFile on a missing path fails with fs.ErrNotExist",
			Run: func(t T, env vpsops.Environment) {
				_, err := env.ReadFile(t.Context(), path.Join(remoteBase(t), "missing.env"))
				require.Error(t, err)
				require.ErrorIs(t, err, fs.ErrNotExist)

				_, err = vpsops.NewExecutor(env).ReadFile(t.Context(), path.Join(remoteBase(t), "missing.env"))
				require.ErrorIs(t, err, fs.ErrNotExist, "Executor keeps the cause")
			},
		},
		{
			Category:    CategoryFiles,
			Name:        "write-read-roundtrip",
			Description: "Bytes written by WriteFile are read back unchanged",
			Run: func(t T, env vpsops.Environment) {
				dst := remoteBase(t) + ".env"
				content := "S3_ENDPOINT=https://abc.r2.cloudflarestorage.com\nPASSWORD='a b'\n"

				require.NoError(t, env.WriteFile(t.Context(), dst, []byte(content)))

				got, err := env.ReadFile(t.Context(), dst)
				require.NoError(t, err)
				assert.Equal(t, content, string(got))
			},
		},
		{
			Category:    CategoryFiles,
			Name:        "write-replaces-content",
			Description: "WriteFile replaces the whole file, including when the new content is shorter",
			Run: func(t T, env vpsops.Environment) {
				dst := remoteBase(t) + ".env"

				require.NoError(t, env.WriteFile(t.Context(), dst, []byte("A=1\nB=2\nC=3\n")))
				require.NoError(t, env.WriteFile(t.Context(), dst, []byte("A=9\n")))

				got, err := env.ReadFile(t.Context(), dst)
				require.NoError(t, err)
				assert.Equal(t, "A=9\n", string(got))
			},
		},
		{
			Category:    CategoryFiles,
			Name:        "write-empty",
			Description: "An empty WriteFile leaves an empty file behind",
			Run: func(t T, env vpsops.Environment) {
				dst := remoteBase(t) + ".env"

				require.NoError(t, env.WriteFile(t.Context(), dst, []byte("A=1\n")))
				require.NoError(t, env.WriteFile(t.Context(), dst, nil))

				got, err := env.ReadFile(t.Context(), dst)
				require.NoError(t, err)
				assert.Empty(t, got)
			},
		},
		{
			Category:    CategoryFiles,
			Name:        "rewrite-skips-unchanged",
			Description: "Rewrite reports false and keeps content when the transform is a no-op",
			Run: func(t T, env vpsops.Environment) {
				dst := remoteBase(t) + ".caddy"
				exec := vpsops.NewExecutor(env)

				require.NoError(t, exec.WriteFile(t.Context(), dst, []byte("example.com {\n}\n")))

				changed, err := exec.Rewrite(t.Context(), dst, func(s string) string { return s })
				require.NoError(t, err)
				assert.False(t, changed)

				changed, err = exec.Rewrite(t.Context(), dst, func(s string) string {
					return strings.ReplaceAll(s, "example.com", "langfuse.example.com")
				})
				require.NoError(t, err)
				assert.True(t, changed)

				got, err := exec.ReadFile(t.Context(), dst)
				require.NoError(t, err)
				assert.Equal(t, "langfuse.example.com {\n}\n", string(got))
			},
		},
		{
			Category:    CategoryFiles,
			Name:        "upload-read",
			Description: "An uploaded file is readable through ReadFile, creating missing parents",
			Run: func(t T, env vpsops.Environment) {
				src := filepath.Join(t.TempDir(), "Caddyfile")
				require.NoError(t, os.WriteFile(src, []byte("example.com {\n}\n"), 0o644))

				dst := path.Join(remoteBase(t), "nested", "Caddyfile")
				require.NoError(t, env.Upload(t.Context(), src, dst))

				got, err := env.ReadFile(t.Context(), dst)
				require.NoError(t, err)
				assert.Equal(t, "example.com {\n}\n", string(got))
			},
		},
		{
			Category:    CategoryFiles,
			Name:        "upload-source-missing",
			Description: "Uploading a local path that does not exist fails",
			Run: func(t T, env vpsops.Environment) {
				src := filepath.Join(t.TempDir(), "does-not-exist")

				require.Error(t, env.Upload(t.Context(), src, remoteBase(t)+".missing"))
			},
		},
		{
			Category:    CategoryFiles,
			Name:        "download-after-write",
			Description: "Download returns what WriteFile stored, with the requested mode",
			Run: func(t T, env vpsops.Environment) {
				dst := remoteBase(t) + ".env"
				require.NoError(t, env.WriteFile(t.Context(), dst, []byte("A=1\n")))

				local := filepath.Join(t.TempDir(), "copy.env")
				require.NoError(t, env.Download(t.Context(), dst, local, vpsops.WithPermissions(privateMode)))

				got, err := os.ReadFile(local)
				require.NoError(t, err)
				assert.Equal(t, "A=1\n", string(got))

				info, err := os.Stat(local)
				require.NoError(t, err)
				assert.Equal(t, os.FileMode(privateMode), info.Mode().Perm())
			},
		},
	}
}

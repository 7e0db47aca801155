package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ruffel/vpsops"
	"github.com/ruffel/vpsops/internal/config"
	"github.com/ruffel/vpsops/internal/keygen"
	"github.com/ruffel/vpsops/internal/stack"
	"github.com/ruffel/vpsops/providers/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dir = "/opt/langfuse"

var r2Env = map[string]string{
	"VPS_HOST":             "203.0.113.10",
	"R2_ACCOUNT_ID":        "abc123",
	"R2_ACCESS_KEY_ID":     "AKID",
	"R2_SECRET_ACCESS_KEY": "secret",
	"R2_MEDIA_BUCKET":      "langfuse-media",
}

type harness struct {
	stdout bytes.Buffer
	stderr bytes.Buffer
	dials  int
}

// run executes the root command with args. connect returns the environment
// handed to the command.
func (h *harness) run(t *testing.T, env map[string]string, connect func() vpsops.Environment, args ...string) error {
	t.Helper()

	cfgPath := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(cfgPath, nil, 0o600))

	a := newApp(&h.stdout, &h.stderr, func(k string) string { return env[k] })
	a.connect = func(context.Context) (vpsops.Environment, error) {
		h.dials++

		return connect(), nil
	}

	root := newRootCmd(a)
	root.SetArgs(append([]string{"--config", cfgPath}, args...))
	root.SetOut(&h.stdout)
	root.SetErr(&h.stderr)

	return root.ExecuteContext(t.Context())
}

func deployedHost(t *testing.T) *mock.Host {
	t.Helper()

	bundle, err := stack.LoadBundle("")
	require.NoError(t, err)

	s, err := stack.NewSecrets(bytes.NewReader(bytes.Repeat([]byte{7}, 512)))
	require.NoError(t, err)

	h := mock.NewHost()
	h.AddBinary("docker", "/usr/bin/docker")
	h.SetFile(dir+"/.env", stack.BuildEnv(stack.Domains{}, s), stack.EnvMode)
	h.SetFile(dir+"/Caddyfile", string(bundle.Caddyfile), stack.PublicMode)
	h.SetFile(dir+"/docker-compose.yml", string(bundle.Compose), stack.PublicMode)

	return h
}

func TestSwitchMediaCmd(t *testing.T) {
	t.Parallel()

	host := deployedHost(t)

	var h harness

	err := h.run(t, r2Env, func() vpsops.Environment { return host }, "switch-media")
	require.NoError(t, err)

	env, _ := host.File(dir + "/.env")
	assert.Contains(t, string(env.Data), "LANGFUSE_S3_MEDIA_UPLOAD_BUCKET=langfuse-media")
	assert.True(t, host.Ran("docker compose up -d"))
	assert.Contains(t, h.stdout.String(), "Media uploads now go to R2")
}

func TestSwitchMediaCmd_DryRun(t *testing.T) {
	t.Parallel()

	host := deployedHost(t)
	before, _ := host.File(dir + "/.env")

	var h harness

	err := h.run(t, r2Env, func() vpsops.Environment { return host }, "switch-media", "--dry-run")
	require.NoError(t, err)

	after, _ := host.File(dir + "/.env")
	assert.Equal(t, before.Data, after.Data)
	assert.Empty(t, host.Writes())
	assert.Contains(t, h.stdout.String(), "+LANGFUSE_S3_MEDIA_UPLOAD_BUCKET=langfuse-media")
	assert.Contains(t, h.stdout.String(), "Dry run")
}

func TestSwitchMediaCmd_MissingSettings(t *testing.T) {
	t.Parallel()

	var h harness

	err := h.run(t, map[string]string{"VPS_HOST": "203.0.113.10"}, func() vpsops.Environment { return mock.NewHost() }, "switch-media")
	require.ErrorIs(t, err, config.ErrMissing)
	assert.Contains(t, err.Error(), "R2_ACCOUNT_ID")
	assert.Zero(t, h.dials, "no connection before settings are complete")
}

func TestDeployCmd(t *testing.T) {
	t.Parallel()

	host := mock.NewHost()

	var h harness

	err := h.run(t, map[string]string{"LANGFUSE_DOMAIN": "lf.example.org"}, func() vpsops.Environment { return host },
		"deploy", "--no-start")
	require.NoError(t, err)

	caddy, ok := host.File(dir + "/Caddyfile")
	require.True(t, ok)
	assert.Contains(t, string(caddy.Data), "lf.example.org {")

	env, ok := host.File(dir + "/.env")
	require.True(t, ok)
	assert.Equal(t, stack.EnvMode, env.Mode)

	assert.False(t, host.Ran("docker compose up"))
	assert.False(t, host.Ran("sudo"))
	assert.Contains(t, h.stdout.String(), "Generated new secrets")
	assert.Contains(t, h.stdout.String(), "uploaded /opt/langfuse/.env (")
}

func TestDeployCmd_Sudo(t *testing.T) {
	t.Parallel()

	host := mock.NewHost()

	var h harness

	err := h.run(t, nil, func() vpsops.Environment { return host }, "--sudo", "deploy", "--no-start")
	require.NoError(t, err)

	calls := host.Calls()
	require.NotEmpty(t, calls)
	assert.Equal(t, "sudo -n -- sh -c set -eu; mkdir -p /opt/langfuse; chmod 0755 /opt/langfuse", calls[0].Line)
}

func TestDeployCmd_BundleMissing(t *testing.T) {
	t.Parallel()

	var h harness

	err := h.run(t, nil, func() vpsops.Environment { return mock.NewHost() }, "deploy", "--bundle", t.TempDir())
	require.ErrorIs(t, err, stack.ErrNoBundle)
	assert.Zero(t, h.dials)
}

func TestAddDeployKeyCmd(t *testing.T) {
	t.Parallel()

	pair, err := keygen.Generate(t.TempDir(), "ci", "github-actions-deploy")
	require.NoError(t, err)

	host := mock.NewHost()
	host.Respond("grep -qxF", mock.Reply{Stdout: "added\n"})

	var h harness

	err = h.run(t, nil, func() vpsops.Environment { return host },
		"add-deploy-key", "--pubkey", pair.PublicPath, "--deploy-user", "ci")
	require.NoError(t, err)

	assert.True(t, host.Ran("useradd -m -s /bin/bash ci"))
	assert.Contains(t, h.stdout.String(), "Key added to /home/ci/.ssh/authorized_keys")
}

func TestAddDeployKeyCmd_NoKey(t *testing.T) {
	t.Parallel()

	var h harness

	err := h.run(t, nil, func() vpsops.Environment { return mock.NewHost() }, "add-deploy-key")
	require.ErrorIs(t, err, config.ErrMissing)
	assert.Zero(t, h.dials)
}

func TestStatusCmd_APIUnsupported(t *testing.T) {
	t.Parallel()

	var h harness

	err := h.run(t, nil, func() vpsops.Environment { return mock.NewHost() }, "status", "--api")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot reach the docker socket")
}

func TestKeygenCmd(t *testing.T) {
	t.Parallel()

	out := t.TempDir()

	var h harness

	require.NoError(t, h.run(t, nil, nil, "keygen", "--out", out, "--name", "ci_key"))

	assert.FileExists(t, filepath.Join(out, "ci_key"))
	assert.FileExists(t, filepath.Join(out, "ci_key.pub"))
	assert.Contains(t, h.stdout.String(), "SHA256:")
	assert.Zero(t, h.dials)

	err := h.run(t, nil, nil, "keygen", "--out", out, "--name", "ci_key")
	require.ErrorIs(t, err, keygen.ErrKeyExists)
}

func TestConfigInitCmd(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	env := map[string]string{"VPS_HOST": "203.0.113.10", "VPS_PASS": "hunter2"}

	a := newApp(&bytes.Buffer{}, &bytes.Buffer{}, func(k string) string { return env[k] })

	root := newRootCmd(a)
	root.SetArgs([]string{"--config", path, "config", "init"})

	// An explicit config path must exist, so the first run fails to load it.
	require.Error(t, root.ExecuteContext(t.Context()))

	require.NoError(t, config.Save(path, config.Default()))

	root = newRootCmd(newApp(&bytes.Buffer{}, &bytes.Buffer{}, func(k string) string { return env[k] }))
	root.SetArgs([]string{"--config", path, "config", "init"})
	require.ErrorContains(t, root.ExecuteContext(t.Context()), "already exists")

	root = newRootCmd(newApp(&bytes.Buffer{}, &bytes.Buffer{}, func(k string) string { return env[k] }))
	root.SetArgs([]string{"--config", path, "config", "init", "--force"})
	require.NoError(t, root.ExecuteContext(t.Context()))

	conf, err := config.Load(path, func(string) string { return "" })
	require.NoError(t, err)
	assert.Equal(t, "203.0.113.10", conf.SSH.Host)
	assert.Empty(t, conf.SSH.Password, "secrets are not written")
}

func TestCheckCmd(t *testing.T) {
	t.Parallel()

	var h harness

	err := h.run(t, nil, func() vpsops.Environment { return mock.NewHost() }, "check")
	require.NoError(t, err)

	out := h.stdout.String()
	assert.Contains(t, out, "✅ write-read-roundtrip")
	assert.Contains(t, out, "⏭  stdin-passthrough")
	assert.Contains(t, out, "The server behaves as expected")
	assert.Greater(t, h.dials, 1, "contracts that close the connection get their own")
}

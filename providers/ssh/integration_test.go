//go:build integration

package ssh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ruffel/vpsops"
	"github.com/ruffel/vpsops/envfile"
	"github.com/ruffel/vpsops/internal/keygen"
	"github.com/ruffel/vpsops/internal/stack"
	"github.com/ruffel/vpsops/porttest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The linuxserver image grants passwordless sudo when USER_PASSWORD is unset.
const (
	serverImage     = "lscr.io/linuxserver/openssh-server:latest"
	serverContainer = "vpsops-ssh-test"
	serverPort      = 2224
)

type server struct {
	config Config
	// scratch is a writable directory on the server.
	scratch string
}

func TestIntegration_Stack(t *testing.T) {
	srv := startServer(t)

	env, err := New(WithConfig(srv.config))
	require.NoError(t, err)

	t.Cleanup(func() { _ = env.Close() })

	ctx := context.Background()
	ex := vpsops.NewExecutor(env)

	root := path.Join(srv.scratch, "langfuse")
	layout := stack.Layout{Dir: root}

	_, _ = ex.Check(ctx, "rm -rf "+vpsops.ShellQuote(root))
	t.Cleanup(func() { _, _ = ex.Check(context.Background(), "rm -rf "+vpsops.ShellQuote(root)) })

	bundle, err := stack.LoadBundle("")
	require.NoError(t, err)

	t.Run("upload creates the stack directory", func(t *testing.T) {
		local := filepath.Join(t.TempDir(), "docker-compose.yml")
		require.NoError(t, os.WriteFile(local, bundle.Compose, 0o644))

		require.NoError(t, env.Upload(ctx, local, layout.Compose(), vpsops.WithPermissions(stack.PublicMode)))

		got, err := env.ReadFile(ctx, layout.Compose())
		require.NoError(t, err)
		assert.Equal(t, bundle.Compose, got)
	})

	t.Run("env file keeps its mode across rewrites", func(t *testing.T) {
		env0 := "NEXTAUTH_URL=\"http://localhost:3000\"\nREDIS_AUTH=\"s3cret\"\n"
		require.NoError(t, ex.WriteFile(ctx, layout.Env(), []byte(env0), vpsops.WithPermissions(stack.EnvMode)))

		updates := []envfile.Update{{Key: "NEXTAUTH_URL", Value: "https://lf.example.org"}}

		changed, err := ex.Rewrite(ctx, layout.Env(), func(text string) string {
			return envfile.Render(text, updates)
		})
		require.NoError(t, err)
		assert.True(t, changed)

		changed, err = ex.Rewrite(ctx, layout.Env(), func(text string) string {
			return envfile.Render(text, updates)
		})
		require.NoError(t, err)
		assert.False(t, changed, "second render is a no-op")

		data, err := env.ReadFile(ctx, layout.Env())
		require.NoError(t, err)

		values := envfile.Values(string(data))
		assert.Equal(t, "https://lf.example.org", values["NEXTAUTH_URL"])
		assert.Equal(t, "s3cret", values["REDIS_AUTH"])

		mode, err := ex.Check(ctx, "stat -c %a "+vpsops.ShellQuote(layout.Env()))
		require.NoError(t, err)
		assert.Equal(t, "600\n", mode)
	})

	t.Run("caddyfile download", func(t *testing.T) {
		caddy := stack.RetargetCaddyfile(string(bundle.Caddyfile), stack.Domains{Web: "lf.example.org"}.WithDefaults())
		require.NoError(t, env.WriteFile(ctx, layout.Caddyfile(), []byte(caddy), vpsops.WithPermissions(stack.PublicMode)))

		local := filepath.Join(t.TempDir(), "Caddyfile")
		require.NoError(t, env.Download(ctx, layout.Caddyfile(), local))

		got, err := os.ReadFile(local)
		require.NoError(t, err)
		assert.Contains(t, string(got), "lf.example.org {")
	})

	t.Run("missing env reports not exist", func(t *testing.T) {
		_, err := env.ReadFile(ctx, path.Join(root, "absent", ".env"))
		require.ErrorIs(t, err, fs.ErrNotExist)
	})

	t.Run("compose commands run in the stack directory", func(t *testing.T) {
		res, err := ex.RunBuffered(ctx, vpsops.Cmd("ls", "-a").Dir(root).Build())
		require.NoError(t, err)
		assert.Contains(t, string(res.Stdout), "docker-compose.yml")
		assert.Contains(t, string(res.Stdout), ".env")
	})

	t.Run("sudo", func(t *testing.T) {
		out, err := ex.Check(ctx, "id -u", vpsops.WithSudo())
		require.NoError(t, err)
		assert.Equal(t, "0\n", out)
	})

	t.Run("check carries stderr", func(t *testing.T) {
		_, err := ex.Check(ctx, "mkdir /proc/vpsops")
		require.Error(t, err)

		var exitErr *vpsops.ExitError
		require.ErrorAs(t, err, &exitErr)
		assert.NotEmpty(t, bytes.TrimSpace(exitErr.Stderr))
	})

	t.Run("line stream", func(t *testing.T) {
		var got []string

		err := ex.RunLineStream(ctx, vpsops.Cmd("sh", "-c", "echo caddy; echo langfuse-web").Build(), func(line string) {
			got = append(got, line)
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"caddy", "langfuse-web"}, got)
	})

	t.Run("kill long running command", func(t *testing.T) {
		proc, err := env.Start(ctx, vpsops.NewCommand("sleep", "30"))
		require.NoError(t, err)

		t.Cleanup(func() { _ = proc.Close() })

		time.Sleep(500 * time.Millisecond)
		require.NoError(t, proc.Signal(os.Kill))

		done := make(chan error, 1)
		go func() { done <- proc.Wait() }()

		select {
		case err := <-done:
			var exitErr *vpsops.ExitError
			if errors.As(err, &exitErr) {
				assert.NotEqual(t, 0, exitErr.ExitCode)
			}
		case <-time.After(10 * time.Second):
			t.Fatal("process survived kill")
		}
	})

	t.Run("environment variables", func(t *testing.T) {
		var stdout bytes.Buffer

		_, err := env.Run(ctx, &vpsops.Command{
			Cmd:    "sh",
			Args:   []string{"-c", "echo $COMPOSE_PROJECT_NAME"},
			Env:    []string{"COMPOSE_PROJECT_NAME=langfuse"},
			Stdout: &stdout,
		})
		require.NoError(t, err)
		assert.Equal(t, "langfuse\n", stdout.String())
	})
}

func TestIntegration_Contracts(t *testing.T) {
	srv := startServer(t)

	porttest.Verify(t, func(t *testing.T) vpsops.Environment {
		env, err := New(WithConfig(srv.config))
		require.NoError(t, err)

		return env
	})
}

// startServer connects to SSH_TEST_HOST when set and otherwise runs an
// openssh-server container.
func startServer(t *testing.T) server {
	t.Helper()

	if host := os.Getenv("SSH_TEST_HOST"); host != "" {
		port, _ := strconv.Atoi(os.Getenv("SSH_TEST_PORT"))
		if port == 0 {
			port = 22
		}

		return server{
			config: Config{
				Host:               host,
				Port:               port,
				User:               os.Getenv("SSH_TEST_USER"),
				Password:           os.Getenv("SSH_TEST_PASS"),
				PrivateKeyPath:     os.Getenv("SSH_TEST_KEY_PATH"),
				Timeout:            5 * time.Second,
				InsecureSkipVerify: true,
			},
			scratch: "/tmp",
		}
	}

	if _, err := exec.LookPath("docker"); err != nil {
		t.Skip("SSH_TEST_HOST not set and docker not found in PATH")
	}

	pair, err := keygen.Generate(t.TempDir(), "id_ed25519", "vpsops-integration")
	require.NoError(t, err)

	const user = "deploy"

	_ = exec.Command("docker", "rm", "-f", serverContainer).Run()

	out, err := exec.Command("docker", "run", "-d",
		"--name", serverContainer,
		"-p", fmt.Sprintf("%d:2222", serverPort),
		"-e", "PUID=1000",
		"-e", "PGID=1000",
		"-e", "USER_NAME="+user,
		"-e", "PUBLIC_KEY="+strings.TrimSpace(pair.AuthorizedKey),
		"-e", "SUDO_ACCESS=true",
		"-e", "PASSWORD_ACCESS=false",
		serverImage,
	).CombinedOutput()
	require.NoError(t, err, "start container: %s", out)

	t.Cleanup(func() {
		if os.Getenv("KEEP_SSH_CONTAINER") == "" {
			_ = exec.Command("docker", "rm", "-f", serverContainer).Run()
		}
	})

	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(serverPort))
	if !waitForPort(addr, 30*time.Second) {
		logs, _ := exec.Command("docker", "logs", serverContainer).CombinedOutput()
		t.Fatalf("sshd never listened on %s:\n%s", addr, logs)
	}

	// sshd accepts connections before the user's keys are installed.
	time.Sleep(3 * time.Second)

	return server{
		config: Config{
			Host:               "127.0.0.1",
			Port:               serverPort,
			User:               user,
			PrivateKeyPath:     pair.PrivatePath,
			Timeout:            5 * time.Second,
			InsecureSkipVerify: true,
		},
		scratch: "/config",
	}
}

func waitForPort(addr string, timeout time.Duration) bool {
	for end := time.Now().Add(timeout); time.Now().Before(end); time.Sleep(500 * time.Millisecond) {
		conn, err := net.DialTimeout("tcp", addr, time.Second)
		if err == nil {
			_ = conn.Close()

			return true
		}
	}

	return false
}

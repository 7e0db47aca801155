package ssh

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSSH_NewFromSSHConfig(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "ssh_config")

	configContent := `
Host langfuse
    HostName 203.0.113.10
    User deploy
    Port 2222
    IdentityFile ~/.ssh/id_ed25519
    UserKnownHostsFile ~/.ssh/known_hosts_langfuse
    StrictHostKeyChecking no
`
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0o600))

	t.Run("custom path", func(t *testing.T) {
		t.Parallel()

		cfg, err := NewFromSSHConfig("langfuse", configPath)
		require.NoError(t, err)

		assert.Equal(t, "203.0.113.10", cfg.Host)
		assert.Equal(t, "deploy", cfg.User)
		assert.Equal(t, 2222, cfg.Port)
		assert.True(t, cfg.InsecureSkipVerify)
		assert.True(t, filepath.IsAbs(cfg.PrivateKeyPath))
		assert.Contains(t, cfg.PrivateKeyPath, "id_ed25519")
		assert.True(t, strings.HasSuffix(cfg.KnownHostsPath, "known_hosts_langfuse"))
	})

	t.Run("non-existent path", func(t *testing.T) {
		t.Parallel()

		_, err := NewFromSSHConfig("langfuse", filepath.Join(tmpDir, "non_existent"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to open ssh config")
	})
}

func TestSSH_NewFromSSHConfigReader_UnknownAlias(t *testing.T) {
	t.Parallel()

	cfg, err := NewFromSSHConfigReader("vps.example.com", strings.NewReader("Host other\n  Port 2200\n"))
	require.NoError(t, err)

	assert.Equal(t, "vps.example.com", cfg.Host)
	assert.Equal(t, 22, cfg.Port)
	assert.Empty(t, cfg.KnownHostsPath)
}

func TestSSH_NewFromSSHConfigReader_BadPort(t *testing.T) {
	t.Parallel()

	_, err := NewFromSSHConfigReader("x", strings.NewReader("Host x\n  Port twenty\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid port")
}

package config

import (
	"fmt"
	"time"

	"github.com/ruffel/vpsops/providers/ssh"
)

// DialTimeout bounds the SSH handshake.
const DialTimeout = 20 * time.Second

// SSHOptions converts the SSH section into provider options. With an alias the
// ~/.ssh/config entry (sshConfigPath, or the default file when empty) is the
// base and every non-empty setting overrides it.
func (c Config) SSHOptions(sshConfigPath string) ([]ssh.Option, error) {
	base := ssh.NewConfig(c.SSH.Host, DefaultUser)

	if c.SSH.Alias != "" {
		resolved, err := ssh.NewFromSSHConfig(c.SSH.Alias, sshConfigPath)
		if err != nil {
			return nil, fmt.Errorf("ssh alias %s: %w", c.SSH.Alias, err)
		}

		base = resolved
	} else if err := c.Require("VPS_HOST"); err != nil {
		return nil, err
	}

	opts := []ssh.Option{ssh.WithConfig(base), ssh.WithTimeout(DialTimeout)}

	if c.SSH.Host != "" {
		opts = append(opts, ssh.WithHost(c.SSH.Host))
	}

	if c.SSH.User != "" {
		opts = append(opts, ssh.WithUser(c.SSH.User))
	}

	if c.SSH.Port != 0 {
		opts = append(opts, ssh.WithPort(c.SSH.Port))
	}

	if c.SSH.Password != "" {
		opts = append(opts, ssh.WithPassword(c.SSH.Password))
	}

	if c.SSH.KeyPath != "" {
		opts = append(opts, ssh.WithKeyPath(c.SSH.KeyPath))
	}

	if c.SSH.Password == "" && c.SSH.KeyPath == "" && base.PrivateKeyPath == "" {
		opts = append(opts, ssh.WithAgent())
	}

	switch {
	case c.SSH.Insecure:
		opts = append(opts, ssh.WithInsecureSkipVerify(true))
	case c.SSH.KnownHosts != "":
		opts = append(opts, ssh.WithKnownHosts(c.SSH.KnownHosts))
	case base.KnownHostsPath == "" && !base.InsecureSkipVerify:
		opts = append(opts, ssh.WithKnownHosts(ssh.DefaultKnownHostsPath()))
	}

	return opts, nil
}

// ResolveSSH applies the options from SSHOptions to an empty ssh.Config.
// It is what New would dial, useful for logging the target.
func ResolveSSH(opts []ssh.Option) ssh.Config {
	var cfg ssh.Config
	for _, o := range opts {
		o(&cfg)
	}

	return cfg.WithDefaults()
}

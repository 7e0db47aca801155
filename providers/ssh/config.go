package ssh

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kevinburke/ssh_config"
	"github.com/ruffel/vpsops"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// Config holds all parameters required to establish an SSH connection.
type Config struct {
	Host string // Hostname or IP address
	Port int    // Port number (default 22)
	User string // Username to authenticate as

	// Authentication methods, offered to the server in this order.
	Password       string // Password authentication
	PrivateKey     string // PEM encoded private key content
	PrivateKeyPath string // Path to private key file (e.g. "~/.ssh/id_ed25519")
	UseAgent       bool   // Offer keys held by the agent at SSH_AUTH_SOCK

	Timeout            time.Duration       // Connection timeout (default 10s)
	HostKeyCheck       ssh.HostKeyCallback // Explicit host key callback
	KnownHostsPath     string              // known_hosts file used when HostKeyCheck is nil
	InsecureSkipVerify bool                // Accept any host key. Testing only.
	OS                 vpsops.TargetOS     // Target operating system (default OSLinux)
}

// NewConfig creates a Config with safe defaults.
// It does not choose a host key policy; set HostKeyCheck, KnownHostsPath or
// InsecureSkipVerify.
func NewConfig(host, username string) Config {
	return Config{
		Host:    host,
		User:    username,
		Port:    22,
		Timeout: 10 * time.Second,
	}
}

// NewFromSSHConfig resolves alias from an OpenSSH client config file.
// An empty path reads ~/.ssh/config.
func NewFromSSHConfig(alias, path string) (Config, error) {
	if path == "" {
		path = filepath.Join(homeDir(), ".ssh", "config")
	}

	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to open ssh config: %w", err)
	}

	defer func() { _ = f.Close() }()

	return NewFromSSHConfigReader(alias, f)
}

// NewFromSSHConfigReader resolves alias to its HostName, User, Port,
// IdentityFile, UserKnownHostsFile and StrictHostKeyChecking settings.
func NewFromSSHConfigReader(alias string, r io.Reader) (Config, error) {
	cfg, err := ssh_config.Decode(r)
	if err != nil {
		return Config{}, fmt.Errorf("failed to parse ssh config: %w", err)
	}

	hostName, err := cfg.Get(alias, "HostName")
	if err != nil || hostName == "" {
		hostName = alias
	}

	username, _ := cfg.Get(alias, "User")
	if username == "" {
		if u, _ := user.Current(); u != nil {
			username = u.Username
		}
	}

	c := NewConfig(hostName, username)

	if portStr, _ := cfg.Get(alias, "Port"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return Config{}, fmt.Errorf("invalid port %q for host %s: %w", portStr, alias, err)
		}

		c.Port = port
	}

	identityFile, _ := cfg.Get(alias, "IdentityFile")
	c.PrivateKeyPath = expandHome(identityFile)

	knownHosts, _ := cfg.Get(alias, "UserKnownHostsFile")
	if fields := strings.Fields(knownHosts); len(fields) > 0 {
		c.KnownHostsPath = expandHome(fields[0])
	}

	if strict, _ := cfg.Get(alias, "StrictHostKeyChecking"); strict == "no" {
		c.InsecureSkipVerify = true
	}

	return c, nil
}

// WithDefaults fills zero-valued fields.
func (c Config) WithDefaults() Config {
	if c.Host != "" && c.User != "" && c.Port == 0 {
		c.Port = 22
	}

	if c.Timeout == 0 {
		c.Timeout = 10 * time.Second
	}

	if c.InsecureSkipVerify && c.HostKeyCheck == nil {
		c.HostKeyCheck = ssh.InsecureIgnoreHostKey() //nolint:gosec // explicit opt-in
	}

	if c.OS == vpsops.OSUnknown {
		c.OS = vpsops.OSLinux
	}

	return c
}

// Validate ensures all required fields are present.
func (c Config) Validate() error {
	if c.Host == "" {
		return errors.New("configuration error: host address cannot be empty")
	}

	if c.User == "" {
		return errors.New("configuration error: user cannot be empty")
	}

	if c.HostKeyCheck == nil && c.KnownHostsPath == "" {
		return errors.New("configuration error: no host key policy; provide a known_hosts file or set InsecureSkipVerify=true (testing only)")
	}

	return nil
}

// Addr returns the host:port dial address.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ToClientConfig converts c to an ssh.ClientConfig with password and inline key
// authentication. Key files and the agent are added by New.
func (c Config) ToClientConfig() (*ssh.ClientConfig, error) {
	callback := c.HostKeyCheck
	if callback == nil {
		kh, err := knownhosts.New(c.KnownHostsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load known_hosts %s: %w", c.KnownHostsPath, err)
		}

		callback = kh
	}

	config := &ssh.ClientConfig{
		User:            c.User,
		Auth:            []ssh.AuthMethod{},
		HostKeyCallback: callback,
		Timeout:         c.Timeout,
	}

	if c.Password != "" {
		config.Auth = append(config.Auth, ssh.Password(c.Password))
	}

	if c.PrivateKey != "" {
		signer, err := ssh.ParsePrivateKey([]byte(c.PrivateKey))
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}

		config.Auth = append(config.Auth, ssh.PublicKeys(signer))
	}

	return config, nil
}

// DefaultKnownHostsPath returns ~/.ssh/known_hosts.
func DefaultKnownHostsPath() string {
	return filepath.Join(homeDir(), ".ssh", "known_hosts")
}

func homeDir() string {
	if h, err := os.UserHomeDir(); err == nil {
		return h
	}

	return os.Getenv("HOME")
}

func expandHome(p string) string {
	if strings.HasPrefix(p, "~/") {
		return filepath.Join(homeDir(), p[2:])
	}

	return p
}

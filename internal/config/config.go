// Package config resolves the settings of the vpsops command.
//
// Values are layered in this order, later sources winning: built-in defaults,
// the TOML file (by default $XDG_CONFIG_HOME/vpsops/config.toml), environment
// variables, then command line flags that were explicitly set.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/adrg/xdg"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/ruffel/vpsops/internal/stack"
)

const (
	// AppName names the configuration directory.
	AppName = "vpsops"
	// FileName is the configuration file inside the directory.
	FileName = "config.toml"

	DefaultUser       = "root"
	DefaultDeployUser = "deploy"
	DefaultKeyComment = "github-actions-deploy"
	DefaultKeyName    = "gh_actions_ed25519"
)

// ErrMissing is returned by Require when a setting has no value.
var ErrMissing = errors.New("missing setting")

// Config holds every setting used by the commands.
type Config struct {
	SSH     SSHConfig     `toml:"ssh"`
	Stack   StackConfig   `toml:"stack"`
	R2      R2Config      `toml:"r2"`
	Deploy  DeployConfig  `toml:"deploy"`
	Restart RestartConfig `toml:"restart"`
}

// SSHConfig locates and authenticates against the server.
type SSHConfig struct {
	Host       string `toml:"host"`
	Port       int    `toml:"port"`
	User       string `toml:"user"`
	Password   string `toml:"password,omitempty"`
	KeyPath    string `toml:"key_path"`
	Alias      string `toml:"alias"` // Host entry of ~/.ssh/config
	KnownHosts string `toml:"known_hosts"`
	Insecure   bool   `toml:"insecure"`
	Sudo       bool   `toml:"sudo"` // run remote commands through sudo -n
}

// StackConfig describes the deployed stack.
type StackConfig struct {
	Dir       string `toml:"dir"`
	WebDomain string `toml:"web_domain"`
	S3Domain  string `toml:"s3_domain"`
}

// R2Config is the Cloudflare R2 bucket used for media uploads.
type R2Config struct {
	AccountID       string `toml:"account_id"`
	AccessKeyID     string `toml:"access_key_id"`
	SecretAccessKey string `toml:"secret_access_key,omitempty"`
	Bucket          string `toml:"bucket"`
}

// DeployConfig configures the CI deploy user and its key.
type DeployConfig struct {
	User          string `toml:"user"`
	PublicKeyPath string `toml:"public_key_path"`
	KeyComment    string `toml:"key_comment"`
	KeyDir        string `toml:"key_dir"`
}

// RestartConfig overrides the commands run after a configuration change.
// Each entry is a shell-like command line run inside the stack directory.
type RestartConfig struct {
	Commands []string `toml:"commands"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Stack: StackConfig{
			Dir: stack.DefaultDir,
		},
		Deploy: DeployConfig{
			User:       DefaultDeployUser,
			KeyComment: DefaultKeyComment,
			KeyDir:     filepath.Join("deploy", "vps", "keys"),
		},
	}
}

// DefaultPath is the configuration file read when no path is given.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, AppName, FileName)
}

// Load layers the file at path and the environment over the defaults.
// An empty path reads DefaultPath and tolerates its absence; an explicit path
// must exist. getenv is usually os.Getenv.
func Load(path string, getenv func(string) string) (Config, error) {
	conf := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)

	switch {
	case err == nil:
		if err := decode(data, &conf); err != nil {
			return Config{}, fmt.Errorf("config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	if err := conf.ApplyEnv(getenv); err != nil {
		return Config{}, err
	}

	conf.expand()

	return conf, nil
}

func decode(data []byte, conf *Config) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	return dec.Decode(conf)
}

// Save writes conf to path as TOML, creating the directory.
func Save(path string, conf Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	data, err := toml.Marshal(conf)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

// setting binds an environment variable to a string field.
type setting struct {
	env   string
	field func(*Config) *string
}

var settings = []setting{
	{"VPS_HOST", func(c *Config) *string { return &c.SSH.Host }},
	{"VPS_USER", func(c *Config) *string { return &c.SSH.User }},
	{"VPS_PASS", func(c *Config) *string { return &c.SSH.Password }},
	{"VPS_KEY_PATH", func(c *Config) *string { return &c.SSH.KeyPath }},
	{"LANGFUSE_DIR", func(c *Config) *string { return &c.Stack.Dir }},
	{"LANGFUSE_DOMAIN", func(c *Config) *string { return &c.Stack.WebDomain }},
	{"LANGFUSE_S3_DOMAIN", func(c *Config) *string { return &c.Stack.S3Domain }},
	{"R2_ACCOUNT_ID", func(c *Config) *string { return &c.R2.AccountID }},
	{"R2_ACCESS_KEY_ID", func(c *Config) *string { return &c.R2.AccessKeyID }},
	{"R2_SECRET_ACCESS_KEY", func(c *Config) *string { return &c.R2.SecretAccessKey }},
	{"R2_MEDIA_BUCKET", func(c *Config) *string { return &c.R2.Bucket }},
	{"DEPLOY_USER", func(c *Config) *string { return &c.Deploy.User }},
	{"DEPLOY_PUBKEY_PATH", func(c *Config) *string { return &c.Deploy.PublicKeyPath }},
	{"KEY_COMMENT", func(c *Config) *string { return &c.Deploy.KeyComment }},
}

// ApplyEnv overrides settings with the non-blank environment variables.
// Values are trimmed.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	for _, s := range settings {
		if v := strings.TrimSpace(getenv(s.env)); v != "" {
			*s.field(c) = v
		}
	}

	if v := strings.TrimSpace(getenv("VPS_PORT")); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port < 1 || port > 65535 {
			return fmt.Errorf("VPS_PORT: invalid port %q", v)
		}

		c.SSH.Port = port
	}

	if v := strings.TrimSpace(getenv("VPS_SUDO")); v != "" {
		sudo, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("VPS_SUDO: invalid boolean %q", v)
		}

		c.SSH.Sudo = sudo
	}

	return nil
}

// Require reports every listed environment variable name whose setting is
// blank. The error wraps ErrMissing.
func (c *Config) Require(envs ...string) error {
	var missing []string

	for _, env := range envs {
		v, known := c.lookup(env)
		if !known {
			return fmt.Errorf("unknown setting %s", env)
		}

		if strings.TrimSpace(v) == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissing, strings.Join(missing, ", "))
	}

	return nil
}

func (c *Config) lookup(env string) (string, bool) {
	for _, s := range settings {
		if s.env == env {
			return *s.field(c), true
		}
	}

	return "", false
}

// Domains returns the stack domains with defaults applied.
func (c Config) Domains() stack.Domains {
	return stack.Domains{Web: c.Stack.WebDomain, S3: c.Stack.S3Domain}.WithDefaults()
}

// Layout returns the remote file layout of the stack.
func (c Config) Layout() stack.Layout {
	return stack.Layout{Dir: c.Stack.Dir}
}

// R2Bucket returns the media bucket settings.
func (c Config) R2Bucket() stack.R2 {
	return stack.R2{
		AccountID:       c.R2.AccountID,
		AccessKeyID:     c.R2.AccessKeyID,
		SecretAccessKey: c.R2.SecretAccessKey,
		Bucket:          c.R2.Bucket,
	}
}

func (c *Config) expand() {
	c.SSH.KeyPath = ExpandPath(c.SSH.KeyPath)
	c.SSH.KnownHosts = ExpandPath(c.SSH.KnownHosts)
	c.Deploy.PublicKeyPath = ExpandPath(c.Deploy.PublicKeyPath)
	c.Deploy.KeyDir = ExpandPath(c.Deploy.KeyDir)
}

// ExpandPath expands a leading "~/" and the variables ${HOME}, ${USER} and
// ${XDG_CONFIG_HOME}. Other variables expand to "".
func ExpandPath(val string) string {
	if val == "" {
		return ""
	}

	if strings.HasPrefix(val, "~/") {
		val = "${HOME}" + val[1:]
	}

	mapper := func(name string) string {
		switch name {
		case "XDG_CONFIG_HOME":
			return xdg.ConfigHome
		case "HOME":
			home, err := os.UserHomeDir()
			if err != nil {
				return ""
			}

			return home
		case "USER":
			u, err := user.Current()
			if err != nil {
				return os.Getenv("USER")
			}

			return u.Username
		}

		return ""
	}

	return os.Expand(val, mapper)
}

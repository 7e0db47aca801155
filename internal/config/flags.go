package config

import (
	"github.com/spf13/pflag"
)

// Flag names shared by every command.
const (
	FlagHost       = "host"
	FlagPort       = "port"
	FlagUser       = "user"
	FlagPassword   = "password"
	FlagKey        = "key"
	FlagAlias      = "ssh-alias"
	FlagKnownHosts = "known-hosts"
	FlagInsecure   = "insecure"
	FlagSudo       = "sudo"
	FlagDir        = "dir"
	FlagDomain     = "domain"
	FlagS3Domain   = "s3-domain"
)

// RegisterFlags declares the connection and stack flags on fs. The flags carry
// no defaults of their own; only flags set on the command line are applied.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String(FlagHost, "", "server host name or IP (VPS_HOST)")
	fs.Int(FlagPort, 0, "SSH port (VPS_PORT, default 22)")
	fs.String(FlagUser, "", "SSH user (VPS_USER, default root)")
	fs.String(FlagPassword, "", "SSH password (VPS_PASS)")
	fs.String(FlagKey, "", "private key path (VPS_KEY_PATH)")
	fs.String(FlagAlias, "", "read host, port, user and key from this ~/.ssh/config entry")
	fs.String(FlagKnownHosts, "", "known_hosts file (default ~/.ssh/known_hosts)")
	fs.Bool(FlagInsecure, false, "accept any host key")
	fs.Bool(FlagSudo, false, "run remote commands through sudo -n (VPS_SUDO)")
	fs.String(FlagDir, "", "stack directory on the server (LANGFUSE_DIR, default /opt/langfuse)")
	fs.String(FlagDomain, "", "public web domain (LANGFUSE_DOMAIN)")
	fs.String(FlagS3Domain, "", "public MinIO domain (LANGFUSE_S3_DOMAIN, default s3.<domain>)")
}

// ApplyFlags copies the flags explicitly set on fs into c.
func (c *Config) ApplyFlags(fs *pflag.FlagSet) error {
	strs := map[string]*string{
		FlagHost:       &c.SSH.Host,
		FlagUser:       &c.SSH.User,
		FlagPassword:   &c.SSH.Password,
		FlagKey:        &c.SSH.KeyPath,
		FlagAlias:      &c.SSH.Alias,
		FlagKnownHosts: &c.SSH.KnownHosts,
		FlagDir:        &c.Stack.Dir,
		FlagDomain:     &c.Stack.WebDomain,
		FlagS3Domain:   &c.Stack.S3Domain,
	}

	for name, dst := range strs {
		if fs.Lookup(name) == nil || !fs.Changed(name) {
			continue
		}

		v, err := fs.GetString(name)
		if err != nil {
			return err
		}

		*dst = v
	}

	if fs.Lookup(FlagPort) != nil && fs.Changed(FlagPort) {
		port, err := fs.GetInt(FlagPort)
		if err != nil {
			return err
		}

		c.SSH.Port = port
	}

	bools := map[string]*bool{
		FlagInsecure: &c.SSH.Insecure,
		FlagSudo:     &c.SSH.Sudo,
	}

	for name, dst := range bools {
		if fs.Lookup(name) == nil || !fs.Changed(name) {
			continue
		}

		v, err := fs.GetBool(name)
		if err != nil {
			return err
		}

		*dst = v
	}

	c.expand()

	return nil
}

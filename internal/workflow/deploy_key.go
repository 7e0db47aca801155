package workflow

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/ruffel/vpsops"
	"github.com/ruffel/vpsops/internal/keygen"
)

// ErrInvalidUser is returned for user names useradd would reject.
var ErrInvalidUser = errors.New("invalid user name")

// DeployKeyOptions configures AddDeployKey.
type DeployKeyOptions struct {
	User      string
	PublicKey string // authorized_keys line
}

// DeployKeyReport is the outcome of AddDeployKey.
type DeployKeyReport struct {
	AuthorizedKeys string
	KeyAdded       bool // false when the key was already installed
}

// AddDeployKey creates the deploy user if needed, adds it to the docker group,
// installs the public key in its authorized_keys and lets its group read the
// stack directory, which docker compose needs for the .env. Every step is
// idempotent.
func (r *Runner) AddDeployKey(ctx context.Context, opts DeployKeyOptions) (DeployKeyReport, error) {
	var rep DeployKeyReport

	if !ValidUser(opts.User) {
		return rep, fmt.Errorf("%w: %q", ErrInvalidUser, opts.User)
	}

	key, err := keygen.ParseAuthorized([]byte(opts.PublicKey))
	if err != nil {
		return rep, err
	}

	u := vpsops.ShellQuote(opts.User)
	sshDir := path.Join("/home", opts.User, ".ssh")
	rep.AuthorizedKeys = path.Join(sshDir, "authorized_keys")
	ak := vpsops.ShellQuote(rep.AuthorizedKeys)

	logger := r.log().With("user", opts.User)

	steps := []struct {
		name   string
		script string
	}{
		{
			name: "user",
			script: fmt.Sprintf("id -u %[1]s >/dev/null 2>&1 || useradd -m -s /bin/bash %[1]s; "+
				"getent group docker >/dev/null 2>&1 || groupadd docker; "+
				"usermod -aG docker %[1]s", u),
		},
		{
			name: "authorized_keys",
			script: fmt.Sprintf("install -d -m 0700 -o %[1]s -g %[1]s %[2]s; "+
				"touch %[3]s; chown %[1]s:%[1]s %[3]s; chmod 0600 %[3]s",
				u, vpsops.ShellQuote(sshDir), ak),
		},
	}

	for _, s := range steps {
		if _, err := r.check(ctx, s.script); err != nil {
			return rep, fmt.Errorf("deploy key %s: %w", s.name, err)
		}

		logger.Info("ensured", "step", s.name)
	}

	q := vpsops.ShellQuote(key)

	out, err := r.check(ctx, fmt.Sprintf(
		"if grep -qxF %[1]s %[2]s; then echo present; else printf '%%s\\n' %[1]s >> %[2]s; echo added; fi", q, ak))
	if err != nil {
		return rep, fmt.Errorf("deploy key install: %w", err)
	}

	rep.KeyAdded = strings.TrimSpace(out) == "added"
	logger.Info("public key", "path", rep.AuthorizedKeys, "added", rep.KeyAdded)

	dir := vpsops.ShellQuote(r.Layout.Root())
	env := vpsops.ShellQuote(r.Layout.Env())
	public := vpsops.ShellQuote(r.Layout.Compose()) + " " + vpsops.ShellQuote(r.Layout.Caddyfile())

	if _, err := r.check(ctx, fmt.Sprintf("if [ -d %[1]s ]; then "+
		"chown -R root:%[2]s %[1]s; chmod 0750 %[1]s; "+
		"chmod 0640 %[3]s || true; chmod 0644 %[4]s || true; fi", dir, u, env, public)); err != nil {
		return rep, fmt.Errorf("deploy key permissions: %w", err)
	}

	logger.Info("stack directory readable by group", "dir", r.Layout.Root())

	return rep, nil
}

// ValidUser accepts portable user names: a lowercase letter or underscore,
// then lowercase letters, digits, '_' or '-', at most 32 characters.
func ValidUser(name string) bool {
	if name == "" || len(name) > 32 {
		return false
	}

	for i, c := range name {
		switch {
		case c >= 'a' && c <= 'z', c == '_':
		case i > 0 && (c >= '0' && c <= '9' || c == '-'):
		default:
			return false
		}
	}

	return true
}

package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/ruffel/vpsops"
	"github.com/ruffel/vpsops/envfile"
	"github.com/ruffel/vpsops/internal/stack"
)

// DeployOptions configures Deploy.
type DeployOptions struct {
	Domains stack.Domains
	Bundle  stack.Bundle

	// FreshSecrets regenerates every secret even when the server already has
	// a complete .env. Existing databases will no longer accept the new ones.
	FreshSecrets bool

	NoStart bool      // upload only
	Rand    io.Reader // secret source, crypto/rand when nil

	// Progress is called with the bytes sent for each uploaded file.
	Progress func(path string, done, total int64)
}

// DeployReport is the outcome of Deploy.
type DeployReport struct {
	SecretsReused bool
	Started       bool
}

// Deploy uploads the compose file, the Caddyfile retargeted at the configured
// domains and the .env, then pulls and starts the stack.
//
// When the server already holds a .env with every secret, it is kept and only
// the domain settings are updated, so redeploys neither rotate database
// passwords nor undo a media storage switch.
func (r *Runner) Deploy(ctx context.Context, opts DeployOptions) (DeployReport, error) {
	var rep DeployReport

	domains := opts.Domains.WithDefaults()
	dir := r.Layout.Root()
	logger := r.log().With("dir", dir)

	if err := stack.ValidateCompose(opts.Bundle.Compose, stack.RestartServices...); err != nil {
		return rep, err
	}

	if !opts.NoStart {
		if err := r.requireDocker(ctx); err != nil {
			return rep, err
		}
	}

	logger.Info("deploying", "web", domains.Web, "s3", domains.S3)

	if _, err := r.check(ctx, fmt.Sprintf("mkdir -p %[1]s; chmod 0755 %[1]s", vpsops.ShellQuote(dir))); err != nil {
		return rep, fmt.Errorf("prepare %s: %w", dir, err)
	}

	env, reused, err := r.envFor(ctx, domains, opts)
	if err != nil {
		return rep, err
	}

	rep.SecretsReused = reused
	logger.Info("env file", "secrets_reused", reused)

	caddy := stack.RetargetCaddyfile(string(opts.Bundle.Caddyfile), domains)

	files := []struct {
		path string
		data []byte
		mode fs.FileMode
	}{
		{r.Layout.Compose(), opts.Bundle.Compose, stack.PublicMode},
		{r.Layout.Caddyfile(), []byte(caddy), stack.PublicMode},
		{r.Layout.Env(), []byte(env), stack.EnvMode},
	}

	for _, f := range files {
		fopts := []vpsops.FileOption{vpsops.WithPermissions(f.mode)}

		if opts.Progress != nil {
			p := f.path
			fopts = append(fopts, vpsops.WithProgress(func(done, total int64) { opts.Progress(p, done, total) }))
		}

		if err := r.Exec.WriteFile(ctx, f.path, f.data, fopts...); err != nil {
			return rep, err
		}

		logger.Info("uploaded", "path", f.path, "mode", fmt.Sprintf("%04o", f.mode))
	}

	if opts.NoStart {
		return rep, nil
	}

	if err := r.run(ctx, compose(dir, "pull"), vpsops.WithRetry(r.PullAttempts, r.PullDelay)); err != nil {
		return rep, err
	}

	if err := r.run(ctx, compose(dir, "up", "-d")); err != nil {
		return rep, err
	}

	rep.Started = true

	r.showServices(ctx)

	return rep, nil
}

func (r *Runner) envFor(ctx context.Context, domains stack.Domains, opts DeployOptions) (string, bool, error) {
	data, err := r.Exec.ReadFile(ctx, r.Layout.Env())

	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return "", false, err
	case !opts.FreshSecrets:
		existing := string(data)
		if _, ok := stack.ReuseSecrets(existing); ok {
			return envfile.Render(existing, stack.SiteUpdates(domains)), true, nil
		}

		r.log().Warn("existing .env lacks secrets, generating new ones", "path", r.Layout.Env())
	}

	secrets, err := stack.NewSecrets(opts.Rand)
	if err != nil {
		return "", false, err
	}

	return stack.BuildEnv(domains, secrets), false, nil
}

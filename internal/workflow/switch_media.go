package workflow

import (
	"context"

	"github.com/ruffel/vpsops"
	"github.com/ruffel/vpsops/caddyfile"
	"github.com/ruffel/vpsops/envfile"
	"github.com/ruffel/vpsops/internal/stack"
)

// SwitchMediaOptions configures SwitchMedia.
type SwitchMediaOptions struct {
	R2 stack.R2

	// Restart replaces RestartCommands when non-empty.
	Restart []*vpsops.Command

	DryRun    bool // compute diffs only
	NoRestart bool
}

// Report is the outcome of SwitchMedia.
type Report struct {
	EnvChanged   bool
	CaddyChanged bool
	EnvDiff      string
	CaddyDiff    string
	Restarted    bool
}

// SwitchMedia points media uploads at the R2 bucket and drops the public s3.
// site from the Caddyfile, since MinIO no longer needs to be reachable from
// browsers. Files are only written when their content changes. Unless
// NoRestart is set the stack is restarted afterwards so the services pick up
// the new settings.
func (r *Runner) SwitchMedia(ctx context.Context, opts SwitchMediaOptions) (Report, error) {
	var rep Report

	if err := opts.R2.Validate(); err != nil {
		return rep, err
	}

	logger := r.log().With("dry_run", opts.DryRun)
	logger.Info("switching media storage", "bucket", opts.R2.Bucket, "endpoint", stack.R2Endpoint(opts.R2.AccountID))

	updates := stack.MediaUpdates(opts.R2)

	env, err := r.rewrite(ctx, r.Layout.Env(), func(text string) string {
		return envfile.Render(text, updates)
	}, stack.EnvMode, opts.DryRun)
	if err != nil {
		return rep, err
	}

	rep.EnvChanged, rep.EnvDiff = env.Changed, env.Diff
	logger.Info("env file", "path", env.Path, "changed", env.Changed)

	caddy, err := r.rewrite(ctx, r.Layout.Caddyfile(), func(text string) string {
		return caddyfile.RemoveBlocks(text, caddyfile.HasPrefix("s3."))
	}, stack.PublicMode, opts.DryRun)
	if err != nil {
		return rep, err
	}

	rep.CaddyChanged, rep.CaddyDiff = caddy.Changed, caddy.Diff
	logger.Info("caddyfile", "path", caddy.Path, "changed", caddy.Changed)

	if opts.DryRun || opts.NoRestart {
		return rep, nil
	}

	if err := r.requireDocker(ctx); err != nil {
		return rep, err
	}

	cmds := opts.Restart
	if len(cmds) == 0 {
		cmds = RestartCommands(r.Layout.Root())
	}

	for _, cmd := range cmds {
		if err := r.run(ctx, cmd); err != nil {
			return rep, err
		}
	}

	rep.Restarted = true

	r.showServices(ctx)

	return rep, nil
}

package workflow

import (
	"context"
	"errors"
	"io/fs"
	"strconv"

	"github.com/ruffel/vpsops/caddyfile"
	"github.com/ruffel/vpsops/envfile"
)

// DefaultLogTail is the number of caddy log lines shown by Status.
const DefaultLogTail = 80

// StatusOptions configures Status.
type StatusOptions struct {
	LogTail int    // default DefaultLogTail
	Service string // service whose logs are shown, default "caddy"
}

// StatusReport summarises the configuration found on the server.
type StatusReport struct {
	Sites         []string // site labels of the Caddyfile
	MediaEndpoint string
	MediaBucket   string
}

// Status reads the deployed configuration, then streams "docker compose ps"
// and the tail of the service logs to Output. Missing files are reported as
// empty, command failures are returned.
func (r *Runner) Status(ctx context.Context, opts StatusOptions) (StatusReport, error) {
	var rep StatusReport

	if opts.LogTail <= 0 {
		opts.LogTail = DefaultLogTail
	}

	if opts.Service == "" {
		opts.Service = "caddy"
	}

	caddy, err := r.readOptional(ctx, r.Layout.Caddyfile())
	if err != nil {
		return rep, err
	}

	rep.Sites = caddyfile.Labels(caddy)

	env, err := r.readOptional(ctx, r.Layout.Env())
	if err != nil {
		return rep, err
	}

	values := envfile.Values(env)
	rep.MediaEndpoint = values["LANGFUSE_S3_MEDIA_UPLOAD_ENDPOINT"]
	rep.MediaBucket = values["LANGFUSE_S3_MEDIA_UPLOAD_BUCKET"]

	r.log().Info("status", "sites", rep.Sites, "media_endpoint", rep.MediaEndpoint)

	if err := r.requireDocker(ctx); err != nil {
		return rep, err
	}

	dir := r.Layout.Root()

	if err := r.stream(ctx, compose(dir, "ps")); err != nil {
		return rep, err
	}

	r.emit("---")

	logs := compose(dir, "logs", "--no-color", "--tail="+strconv.Itoa(opts.LogTail), opts.Service)
	if err := r.stream(ctx, logs); err != nil {
		return rep, err
	}

	return rep, nil
}

func (r *Runner) readOptional(ctx context.Context, path string) (string, error) {
	data, err := r.Exec.ReadFile(ctx, path)
	if errors.Is(err, fs.ErrNotExist) {
		r.log().Warn("file not found", "path", path)

		return "", nil
	}

	return string(data), err
}

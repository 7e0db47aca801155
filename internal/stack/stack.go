// Package stack describes the Langfuse deployment managed by vpsops: where
// its files live on the server, how its .env is generated, and which compose
// services are restarted after a configuration change.
package stack

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/ruffel/vpsops/caddyfile"
)

const (
	// DefaultDir is the directory holding the stack on the server.
	DefaultDir = "/opt/langfuse"
	// Project is the docker compose project name.
	Project = "langfuse"

	EnvFile     = ".env"
	Caddyfile   = "Caddyfile"
	ComposeFile = "docker-compose.yml"

	// EnvMode keeps secrets private to the owner.
	EnvMode os.FileMode = 0o600
	// PublicMode is used for the compose file and Caddyfile.
	PublicMode os.FileMode = 0o644

	// DefaultWebDomain is the site label shipped in the bundled Caddyfile.
	DefaultWebDomain = "langfuse.example.com"
)

// RestartServices are restarted after the .env or Caddyfile changed.
var RestartServices = []string{"caddy", "langfuse-web", "langfuse-worker"}

// ErrNoBundle is returned when a bundle directory lacks a required file.
var ErrNoBundle = errors.New("deployment bundle incomplete")

//go:embed bundle/docker-compose.yml bundle/Caddyfile
var bundled embed.FS

// Layout locates the stack files under Dir.
type Layout struct {
	Dir string
}

// DefaultLayout uses DefaultDir.
func DefaultLayout() Layout {
	return Layout{Dir: DefaultDir}
}

// Env is the remote path of the .env file.
func (l Layout) Env() string { return path.Join(l.Root(), EnvFile) }

// Caddyfile is the remote path of the Caddyfile.
func (l Layout) Caddyfile() string { return path.Join(l.Root(), Caddyfile) }

// Compose is the remote path of the compose file.
func (l Layout) Compose() string { return path.Join(l.Root(), ComposeFile) }

// Root is the stack directory, DefaultDir when Dir is empty.
func (l Layout) Root() string {
	if l.Dir == "" {
		return DefaultDir
	}

	return l.Dir
}

// Domains are the public host names served by Caddy.
type Domains struct {
	Web string // Langfuse UI and API
	S3  string // MinIO S3 endpoint
}

// WithDefaults fills Web with DefaultWebDomain and S3 with "s3." + Web.
func (d Domains) WithDefaults() Domains {
	if d.Web == "" {
		d.Web = DefaultWebDomain
	}

	if d.S3 == "" {
		d.S3 = "s3." + d.Web
	}

	return d
}

// Bundle is the set of files uploaded by a deploy.
type Bundle struct {
	Compose   []byte
	Caddyfile []byte
}

// LoadBundle reads docker-compose.yml and Caddyfile from dir. An empty dir
// returns the bundle compiled into the binary.
func LoadBundle(dir string) (Bundle, error) {
	read := func(name string) ([]byte, error) {
		if dir == "" {
			return bundled.ReadFile("bundle/" + name)
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s missing in %s", ErrNoBundle, name, dir)
		}

		return data, err
	}

	compose, err := read(ComposeFile)
	if err != nil {
		return Bundle{}, err
	}

	caddy, err := read(Caddyfile)
	if err != nil {
		return Bundle{}, err
	}

	return Bundle{Compose: compose, Caddyfile: caddy}, nil
}

// RetargetCaddyfile renames the bundled site blocks to the configured domains.
// Only whole labels are replaced, so the web domain never rewrites the S3 one.
func RetargetCaddyfile(text string, d Domains) string {
	d = d.WithDefaults()
	text = caddyfile.ReplaceHost(text, "s3."+DefaultWebDomain, d.S3)

	return caddyfile.ReplaceHost(text, DefaultWebDomain, d.Web)
}

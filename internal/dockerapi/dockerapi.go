// Package dockerapi queries the Docker Engine of the server through a
// forwarded connection to its unix socket.
package dockerapi

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
)

const (
	// DefaultSocket is the Docker Engine socket on the server.
	DefaultSocket = "/var/run/docker.sock"

	projectLabel = "com.docker.compose.project"
	serviceLabel = "com.docker.compose.service"
)

// DialFunc opens a connection on the remote host, such as
// (*ssh.Environment).DialRemote.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// Container is one container of a compose project.
type Container struct {
	Name    string
	Service string
	Image   string
	State   string // running, exited, ...
	Status  string // human readable, e.g. "Up 3 hours"
}

type lister interface {
	ContainerList(ctx context.Context, options container.ListOptions) ([]container.Summary, error)
	Close() error
}

// Client lists compose containers.
type Client struct {
	api lister
}

// Config configures New.
type Config struct {
	Socket  string // Remote socket path (default DefaultSocket)
	Version string // API version; negotiated when empty
}

// New builds a client whose every connection is a dial of the remote socket.
func New(dial DialFunc, c Config) (*Client, error) {
	if c.Socket == "" {
		c.Socket = DefaultSocket
	}

	opts := []client.Opt{
		client.WithHost("unix://" + c.Socket),
		client.WithDialContext(func(ctx context.Context, _, _ string) (net.Conn, error) {
			return dial(ctx, "unix", c.Socket)
		}),
	}

	if c.Version != "" {
		opts = append(opts, client.WithVersion(c.Version))
	} else {
		opts = append(opts, client.WithAPIVersionNegotiation())
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	return &Client{api: cli}, nil
}

// ListProject returns every container, running or not, labelled with the
// compose project, ordered by service then name.
func (c *Client) ListProject(ctx context.Context, project string) ([]Container, error) {
	list, err := c.api.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("label", projectLabel+"="+project)),
	})
	if err != nil {
		return nil, fmt.Errorf("list containers: %w", err)
	}

	out := make([]Container, 0, len(list))

	for _, s := range list {
		var name string
		if len(s.Names) > 0 {
			name = strings.TrimPrefix(s.Names[0], "/")
		}

		out = append(out, Container{
			Name:    name,
			Service: s.Labels[serviceLabel],
			Image:   s.Image,
			State:   string(s.State),
			Status:  s.Status,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Service != out[j].Service {
			return out[i].Service < out[j].Service
		}

		return out[i].Name < out[j].Name
	})

	return out, nil
}

// Close releases the HTTP transport.
func (c *Client) Close() error {
	return c.api.Close()
}

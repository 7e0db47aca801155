// Package ssh implements vpsops.Environment for a remote Linux host reached
// over SSH.
//
// Commands run in one session each, with environment variables and the working
// directory expressed as shell prefixes and every argument single-quoted.
// Files move over SFTP; WriteFile replaces the destination through a temporary
// sibling and a rename so readers never see a partial file. DialRemote exposes
// the connection's port forwarding, which lets API clients reach sockets on the
// host such as /var/run/docker.sock.
//
// Usage:
//
//	env, err := ssh.New(
//		ssh.WithHost("203.0.113.10"),
//		ssh.WithUser("root"),
//		ssh.WithKeyPath("/home/me/.ssh/id_ed25519"),
//		ssh.WithKnownHosts(ssh.DefaultKnownHostsPath()),
//	)
package ssh

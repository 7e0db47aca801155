package ssh

import (
	"strings"

	"github.com/ruffel/vpsops"
	"golang.org/x/crypto/ssh"
)

// buildEnvPrefix renders cmd.Env as "export KEY='VALUE'; " statements.
// OpenSSH defaults to PermitUserEnvironment=no, so session.Setenv cannot be used.
func buildEnvPrefix(envVars []string) string {
	var b strings.Builder

	for _, env := range envVars {
		k, v, found := strings.Cut(env, "=")
		if !found {
			continue
		}

		b.WriteString("export ")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(vpsops.ShellQuote(v))
		b.WriteString("; ")
	}

	return b.String()
}

func buildDirPrefix(dir string) string {
	if dir == "" {
		return ""
	}

	return "cd " + vpsops.ShellQuote(dir) + " && "
}

func buildTerminalModes() ssh.TerminalModes {
	return ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
}

// buildFullCommand is the line handed to the remote shell:
// [exports] [cd dir &&] command args...
func buildFullCommand(cmd *vpsops.Command) string {
	return buildEnvPrefix(cmd.Env) + buildDirPrefix(cmd.Dir) + cmd.ShellString()
}

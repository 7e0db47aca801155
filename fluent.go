package vpsops

import (
	"slices"
	"strings"
)

// Builder assembles a Command. Start one with Cmd.
type Builder struct {
	cmd   Command
	input *string
}

// Cmd starts a Builder for binary followed by args.
func Cmd(binary string, args ...string) *Builder {
	return &Builder{cmd: Command{Cmd: binary, Args: slices.Clone(args)}}
}

// Arg appends one argument.
func (b *Builder) Arg(arg string) *Builder {
	b.cmd.Args = append(b.cmd.Args, arg)
	return b
}

// Args appends args.
func (b *Builder) Args(args ...string) *Builder {
	b.cmd.Args = append(b.cmd.Args, args...)
	return b
}

// Dir sets the remote working directory. Over SSH the command line is
// prefixed with a quoted "cd".
func (b *Builder) Dir(dir string) *Builder {
	b.cmd.Dir = dir
	return b
}

// Input feeds s to the command's stdin.
func (b *Builder) Input(s string) *Builder {
	b.input = &s
	return b
}

// Build returns a new Command. Each call gets its own argument slice and
// stdin reader, so one Builder can produce several commands.
func (b *Builder) Build() *Command {
	c := b.cmd
	c.Args = slices.Clone(b.cmd.Args)

	if b.input != nil {
		c.Stdin = strings.NewReader(*b.input)
	}

	return &c
}

// Package ui renders console output for the vpsops command: styled step
// headers, a structured logger and line diffs for dry runs.
package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")). // Pink
			MarginTop(1).
			MarginBottom(1)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")). // Cyan
			MarginLeft(2)

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196")). // Red
			MarginTop(1)

	stepStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")). // Blue
			MarginTop(1)

	checkStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46")). // Green
			MarginTop(1)

	addStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	delStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// Printer writes human oriented progress output.
type Printer struct {
	w io.Writer
}

// NewPrinter returns a Printer writing to w.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// Title prints the banner of a command.
func (p *Printer) Title(msg string) { p.println(titleStyle.Render(msg)) }

// Step prints a numbered step header.
func (p *Printer) Step(n int, msg string) {
	p.println(stepStyle.Render(fmt.Sprintf("%d. %s", n, msg)))
}

// Info prints an indented detail line.
func (p *Printer) Info(msg string) { p.println(infoStyle.Render(msg)) }

// Success prints the final result of a command.
func (p *Printer) Success(msg string) { p.println(checkStyle.Render("✅ " + msg)) }

// Error prints a failure.
func (p *Printer) Error(msg string) { p.println(errorStyle.Render("❌ " + msg)) }

// Line prints remote output verbatim, indented.
func (p *Printer) Line(s string) {
	_, _ = fmt.Fprintf(p.w, "   %s\n", s)
}

// Diff prints the output of Diff, colouring added and removed lines.
func (p *Printer) Diff(title, diff string) {
	if diff == "" {
		p.Info(title + ": unchanged")

		return
	}

	p.Info(title + ":")

	for _, line := range strings.Split(strings.TrimSuffix(diff, "\n"), "\n") {
		switch {
		case strings.HasPrefix(line, "+"):
			line = addStyle.Render(line)
		case strings.HasPrefix(line, "-"):
			line = delStyle.Render(line)
		}

		p.Line(line)
	}
}

func (p *Printer) println(s string) {
	_, _ = fmt.Fprintln(p.w, s)
}

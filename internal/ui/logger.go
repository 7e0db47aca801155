package ui

import (
	"io"
	"time"

	"charm.land/log/v2"
)

// NewLogger returns the structured logger shared by the workflows.
// Debug records are only emitted when verbose is set.
func NewLogger(w io.Writer, verbose bool) *log.Logger {
	l := log.NewWithOptions(w, log.Options{
		Prefix:          "vpsops",
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
		Level:           log.InfoLevel,
	})

	if verbose {
		l.SetLevel(log.DebugLevel)
	}

	return l
}

// Discard returns a logger that drops everything.
func Discard() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.FatalLevel})
}

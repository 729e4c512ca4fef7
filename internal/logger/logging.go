// Package logger constructs the prefixed charmbracelet loggers used by
// snipserve subsystems. Every logger writes to stderr; stdout is reserved
// for the IPC stream.
package logger

import (
	"os"

	"github.com/charmbracelet/log"
)

// New returns a prefixed logger with the shared defaults. The level tracks
// the global one, so the -d debug flag covers subsystem loggers too.
func New(prefix string) *log.Logger {
	return log.NewWithOptions(os.Stderr, log.Options{
		Prefix:          prefix,
		ReportTimestamp: true,
		Formatter:       log.TextFormatter,
		Level:           log.GetLevel(),
	})
}

// NewPlain returns a bare logger without prefix, level or timestamps,
// for user-facing output such as the version banner.
func NewPlain() *log.Logger {
	return log.NewWithOptions(os.Stderr, log.Options{
		ReportCaller:    false,
		ReportTimestamp: false,
	})
}

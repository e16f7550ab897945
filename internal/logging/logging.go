// ABOUTME: Opinionated logger construction for the HMLR system
// ABOUTME: Components receive a *log.Logger and never log through package globals
package logging

import (
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
)

// New returns a logger writing to stderr. Debug mode lowers the level and
// adds caller reporting.
func New(debug bool) *log.Logger {
	return NewWithWriter(os.Stderr, debug)
}

// NewWithWriter returns a logger writing to w.
func NewWithWriter(w io.Writer, debug bool) *log.Logger {
	logger := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
	})
	if debug {
		logger.SetLevel(log.DebugLevel)
		logger.SetReportCaller(true)
	} else {
		logger.SetLevel(log.InfoLevel)
	}
	return logger
}

// Nop returns a logger that discards everything. Used in tests.
func Nop() *log.Logger {
	logger := log.New(io.Discard)
	logger.SetLevel(log.FatalLevel)
	return logger
}

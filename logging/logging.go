// Package logging sets up the process-wide go-logging logger every other
// package borrows from.
package logging

import (
	"os"

	"github.com/op/go-logging"
)

// Log is the guardian's shared logger. Packages that need to log import
// this package and call Log.Infof/Warningf/Errorf directly rather than
// constructing their own logger instance.
var Log = logging.MustGetLogger("guardian")

func init() {
	format := logging.MustStringFormatter(
		`%{color}%{time:15:04:05.000} ▶ %{level:.4s} %{shortfile}%{color:reset} %{message}`,
	)
	backend := logging.NewLogBackend(os.Stdout, "", 0)
	logging.SetBackend(logging.NewBackendFormatter(backend, format))
}

// SetLevel parses name ("DEBUG", "INFO", "WARNING", "ERROR", "CRITICAL")
// and applies it, falling back to INFO on an unrecognized name.
func SetLevel(name string) {
	level, err := logging.LogLevel(name)
	if err != nil {
		level = logging.INFO
	}
	logging.SetLevel(level, "guardian")
}

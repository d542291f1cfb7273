// Package rlog provides the verbose-gated diagnostic stream described
// in spec.md §6/§7: silent except for the exit code unless -V/--verbose
// is set, in which case a short human-readable line naming the failed
// operation and error is written to stderr.
package rlog

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	mu  sync.Mutex
	log = logrus.New()
)

func init() {
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	log.SetOutput(io.Discard)
}

// SetVerbose enables or disables the diagnostic stream.
func SetVerbose(verbose bool) {
	mu.Lock()
	defer mu.Unlock()
	if verbose {
		log.SetOutput(os.Stderr)
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetOutput(io.Discard)
	}
}

// Debugf logs a low-level diagnostic line.
func Debugf(format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	log.Debugf(format, args...)
}

// Warnf logs a failed-operation diagnostic line.
func Warnf(format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	log.Warnf(format, args...)
}

// Output returns the underlying writer, for components that want to
// write to the diagnostic stream directly instead of calling through
// Debugf/Warnf.
func Output() io.Writer {
	mu.Lock()
	defer mu.Unlock()
	return log.Out
}

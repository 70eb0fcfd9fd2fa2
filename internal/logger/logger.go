// Package logger provides verbose logging for acqgen.
// When verbose mode is enabled via the --verbose flag, debug messages
// are printed to stderr to trace each document through retrieval,
// extraction, evaluation and refinement. Errors are always printed.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
)

var (
	mu      sync.Mutex
	verbose bool
	output  io.Writer = os.Stderr
	colored           = !color.NoColor
)

var (
	warnTag  = color.New(color.FgYellow).SprintFunc()
	errorTag = color.New(color.FgRed, color.Bold).SprintFunc()
)

// SetVerbose enables or disables verbose logging.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	mu.Lock()
	defer mu.Unlock()
	return verbose
}

// SetOutput sets the output writer for logs.
// Defaults to os.Stderr. Tags are only coloured on stderr.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
	colored = w == os.Stderr && !color.NoColor
}

func write(always bool, tag, format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	if !verbose && !always {
		return
	}
	fmt.Fprintf(output, tag+" "+format+"\n", args...)
}

// Debug prints a message if verbose mode is enabled.
func Debug(format string, args ...any) {
	write(false, "[DEBUG]", format, args...)
}

// Section prints a section header if verbose mode is enabled.
func Section(name string) {
	mu.Lock()
	defer mu.Unlock()
	if verbose {
		fmt.Fprintf(output, "\n=== %s ===\n", name)
	}
}

// Info prints an informational message if verbose mode is enabled.
func Info(format string, args ...any) {
	write(false, "[INFO]", format, args...)
}

// Warn prints a warning message if verbose mode is enabled.
func Warn(format string, args ...any) {
	write(false, tag("[WARN]", warnTag), format, args...)
}

// Error prints an error message regardless of verbose mode.
func Error(format string, args ...any) {
	write(true, tag("[ERROR]", errorTag), format, args...)
}

// tag colours label when writing to a colour terminal. Callers hold no lock.
func tag(label string, paint func(a ...any) string) string {
	mu.Lock()
	defer mu.Unlock()
	if colored {
		return paint(label)
	}
	return label
}

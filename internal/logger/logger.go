// Package logger is the leveled logger shared by the CLI, the server and the
// retrieval core. Debug output is only written in verbose mode.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"

	"github.com/fatih/color"
)

var (
	mu      sync.RWMutex
	verbose bool
	std     = log.New(os.Stderr, "", log.LstdFlags)

	debugTag = color.New(color.FgHiBlack).Sprint("DEBUG")
	infoTag  = color.New(color.FgCyan).Sprint("INFO ")
	warnTag  = color.New(color.FgYellow).Sprint("WARN ")
	errorTag = color.New(color.FgRed).Sprint("ERROR")
)

// SetVerbose enables or disables debug output.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
}

// IsVerbose reports whether debug output is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput redirects all log output. Defaults to os.Stderr.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	std.SetOutput(w)
}

func Debug(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	if verbose {
		std.Printf("%s %s", debugTag, fmt.Sprintf(format, args...))
	}
}

func Info(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	std.Printf("%s %s", infoTag, fmt.Sprintf(format, args...))
}

func Warn(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	std.Printf("%s %s", warnTag, fmt.Sprintf(format, args...))
}

func Error(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	std.Printf("%s %s", errorTag, fmt.Sprintf(format, args...))
}

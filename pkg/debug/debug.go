// Package debug provides developer tracing for blockmap.
//
// Tracing is enabled by setting BM_DEBUG:
//
//	BM_DEBUG=1 bm render --page "Project X"
//
// Output goes to stderr through a charm logger at debug level. When BM_DEBUG
// is unset every function returns immediately.
package debug

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

var (
	mu      sync.RWMutex
	enabled bool
	logger  *log.Logger
)

func init() {
	if os.Getenv("BM_DEBUG") != "" {
		SetOutput(os.Stderr)
	}
}

func newLogger(w io.Writer) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		Prefix:          "bm-debug",
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.000000",
		Level:           log.DebugLevel,
	})
}

// Enabled returns whether tracing is on.
func Enabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return enabled
}

// SetEnabled toggles tracing, writing to stderr when no output was set.
func SetEnabled(e bool) {
	mu.Lock()
	defer mu.Unlock()
	enabled = e
	if e && logger == nil {
		logger = newLogger(os.Stderr)
	}
}

// SetOutput enables tracing to w. Tests use it to capture output.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	enabled = true
	logger = newLogger(w)
}

func get() *log.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if !enabled {
		return nil
	}
	return logger
}

// Log writes a printf-style trace line.
func Log(format string, args ...any) {
	if l := get(); l != nil {
		l.Debug(fmt.Sprintf(format, args...))
	}
}

// LogTiming records how long name took.
func LogTiming(name string, d time.Duration) {
	if l := get(); l != nil {
		l.Debug(name, "took", d)
	}
}

// LogIf traces only when cond holds.
func LogIf(cond bool, format string, args ...any) {
	if cond {
		Log(format, args...)
	}
}

// LogEnterExit traces entry now and exit (with duration) when the returned
// func runs:
//
//	defer debug.LogEnterExit("assemble")()
func LogEnterExit(name string) func() {
	l := get()
	if l == nil {
		return func() {}
	}
	l.Debug("-> " + name)
	start := time.Now()
	return func() {
		l.Debug("<- "+name, "took", time.Since(start))
	}
}

// Dump traces a value with its type.
func Dump(name string, v any) {
	if l := get(); l != nil {
		l.Debug(name, "type", fmt.Sprintf("%T", v), "value", fmt.Sprintf("%+v", v))
	}
}

// Section writes a section header.
func Section(name string) {
	if l := get(); l != nil {
		l.Debug("=== " + name + " ===")
	}
}

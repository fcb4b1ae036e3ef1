// Package logging is the operational logger: render lifecycle, host errors
// and user-facing warnings. Developer tracing lives in pkg/debug.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// Logger wraps a charm logger with render-pipeline helpers.
type Logger struct {
	*log.Logger
}

// New returns an info-level logger writing to w.
func New(w io.Writer) *Logger {
	return NewWithLevel(w, log.InfoLevel)
}

// NewWithLevel returns a logger at level.
func NewWithLevel(w io.Writer, level log.Level) *Logger {
	return &Logger{Logger: log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.DateTime,
		Level:           level,
		Prefix:          "blockmap",
	})}
}

// NewFileLogger appends to the file at path. The returned func closes it.
func NewFileLogger(path string, level log.Level) (*Logger, func(), error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return NewWithLevel(f, level), func() { f.Close() }, nil
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return New(io.Discard)
}

// ParseLevel maps a config string to a level. Unknown values are info.
func ParseLevel(s string) log.Level {
	lvl, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}

// RenderStarted logs the start of a render for target.
func (l *Logger) RenderStarted(gen uint64, mode, target string) {
	l.Debug("render started", "gen", gen, "mode", mode, "target", target)
}

// RenderCompleted logs a render that installed a new view.
func (l *Logger) RenderCompleted(gen uint64, title string, nodes int, d time.Duration) {
	l.Info("render completed",
		"gen", gen,
		"title", title,
		"nodes", nodes,
		"duration", d.Round(time.Millisecond))
}

// RenderAborted logs a render whose result was not installed.
func (l *Logger) RenderAborted(gen uint64, reason string) {
	l.Debug("render aborted", "gen", gen, "reason", reason)
}

// Warning logs a condition the user should see.
func (l *Logger) Warning(msg string, keyvals ...any) {
	l.Warn(msg, keyvals...)
}

// HostError logs a failed host call.
func (l *Logger) HostError(op string, err error) {
	l.Error("host error", "op", op, "error", err)
}

// ConfigLoaded logs where configuration came from.
func (l *Logger) ConfigLoaded(path string) {
	l.Debug("config loaded", "path", path)
}

package logging

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

func TestHelpers(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithLevel(&buf, log.DebugLevel)

	l.RenderStarted(3, "page", "Project X")
	l.RenderCompleted(3, "Project X", 7, 12*time.Millisecond)
	l.RenderAborted(2, "superseded")
	l.Warning("no linked references", "page", "Project X")
	l.HostError("page-blocks", errors.New("boom"))

	out := buf.String()
	for _, want := range []string{
		"render started", "target=\"Project X\"",
		"render completed", "nodes=7",
		"render aborted", "reason=superseded",
		"no linked references",
		"host error", "error=boom",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestInfoLevelHidesDebug(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf)
	l.RenderStarted(1, "page", "p")
	if buf.Len() != 0 {
		t.Errorf("expected no output at info level, got %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want log.Level
	}{
		{"debug", log.DebugLevel},
		{" WARN ", log.WarnLevel},
		{"error", log.ErrorLevel},
		{"", log.InfoLevel},
		{"chatty", log.InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q): expected %v, got %v", tt.in, tt.want, got)
		}
	}
}

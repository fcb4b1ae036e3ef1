package debug

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetEnabled(false) })
	return &buf
}

func TestDisabledWritesNothing(t *testing.T) {
	buf := capture(t)
	SetEnabled(false)
	Log("hidden %d", 1)
	Section("hidden")
	LogEnterExit("hidden")()
	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
	if Enabled() {
		t.Error("expected tracing disabled")
	}
}

func TestLogHelpers(t *testing.T) {
	buf := capture(t)
	Log("loaded %d pages", 3)
	LogIf(false, "skipped")
	LogIf(true, "kept")
	LogTiming("layout", 5*time.Millisecond)
	Section("render")
	Dump("size", 7)
	LogEnterExit("assemble")()

	out := buf.String()
	for _, want := range []string{"loaded 3 pages", "kept", "layout", "=== render ===", "type=int", "-> assemble", "<- assemble"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output, got:\n%s", want, out)
		}
	}
	if strings.Contains(out, "skipped") {
		t.Errorf("expected LogIf(false) to be silent, got:\n%s", out)
	}
}

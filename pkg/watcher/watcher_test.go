package watcher

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestDebouncer_CoalescesRapidTriggers(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)

	var callCount atomic.Int32
	for i := 0; i < 10; i++ {
		d.Trigger(func() {
			callCount.Add(1)
		})
		time.Sleep(10 * time.Millisecond)
	}
	time.Sleep(150 * time.Millisecond)

	if count := callCount.Load(); count != 1 {
		t.Errorf("expected 1 callback invocation, got %d", count)
	}
}

func TestDebouncer_Cancel(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)

	var called atomic.Bool
	d.Trigger(func() {
		called.Store(true)
	})
	d.Cancel()

	time.Sleep(100 * time.Millisecond)
	if called.Load() {
		t.Error("callback should not have been invoked after cancel")
	}
}

func TestDebouncer_DefaultDuration(t *testing.T) {
	d := NewDebouncer(0)
	if d.Duration() != DefaultDebounceDuration {
		t.Errorf("expected default duration %v, got %v", DefaultDebounceDuration, d.Duration())
	}
}

func TestNoteFiles(t *testing.T) {
	tests := []struct {
		rel  string
		want bool
	}{
		{"pages/Project X.md", true},
		{"journals/2024_01_02.org", true},
		{"pages/notes.MARKDOWN", true},
		{"assets/image.png", false},
		{"pages/", true},
		{".git/", false},
	}
	for _, tt := range tests {
		if got := NoteFiles(tt.rel); got != tt.want {
			t.Errorf("NoteFiles(%q): expected %v, got %v", tt.rel, tt.want, got)
		}
	}
}

type collector struct {
	mu      sync.Mutex
	batches [][]string
}

func (c *collector) add(paths []string) {
	c.mu.Lock()
	c.batches = append(c.batches, paths)
	c.mu.Unlock()
}

func (c *collector) all() map[string]bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]bool)
	for _, b := range c.batches {
		for _, p := range b {
			out[p] = true
		}
	}
	return out
}

func graphDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "pages"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "pages", "a.md"), []byte("- a"), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func testChange(t *testing.T, poll bool) {
	dir := graphDir(t)
	c := &collector{}
	w, err := NewWatcher(dir,
		WithDebounceDuration(50*time.Millisecond),
		WithPollInterval(50*time.Millisecond),
		WithForcePoll(poll),
		WithOnChange(c.add),
	)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()
	if w.IsPolling() != poll {
		t.Errorf("expected polling=%v", poll)
	}

	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(dir, "pages", "a.md"), []byte("- a changed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "pages", "ignored.png"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(400 * time.Millisecond)

	got := c.all()
	if !got["pages/a.md"] {
		t.Errorf("expected pages/a.md to be reported, got %v", got)
	}
	if got["pages/ignored.png"] {
		t.Error("non-note file should be filtered")
	}
}

func TestWatcher_DetectsFileChange(t *testing.T) {
	testChange(t, false)
}

func TestWatcher_PollingFallback(t *testing.T) {
	testChange(t, true)
}

func TestWatcher_NewSubdirectory(t *testing.T) {
	dir := graphDir(t)
	c := &collector{}
	w, err := NewWatcher(dir, WithDebounceDuration(50*time.Millisecond), WithOnChange(c.add))
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()
	if w.IsPolling() {
		t.Skip("fsnotify unavailable")
	}

	sub := filepath.Join(dir, "journals")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(sub, "today.md"), []byte("- hi"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(400 * time.Millisecond)

	if !c.all()["journals/today.md"] {
		t.Errorf("expected file in new directory to be reported, got %v", c.all())
	}
}

func TestWatcher_Filter(t *testing.T) {
	dir := graphDir(t)
	c := &collector{}
	w, err := NewWatcher(dir,
		WithForcePoll(true),
		WithPollInterval(30*time.Millisecond),
		WithDebounceDuration(30*time.Millisecond),
		WithFilter(func(rel string) bool { return rel == "pages/" || rel == "pages/b.md" }),
		WithOnChange(c.add),
	)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	time.Sleep(60 * time.Millisecond)
	_ = os.WriteFile(filepath.Join(dir, "pages", "a.md"), []byte("- changed"), 0o644)
	_ = os.WriteFile(filepath.Join(dir, "pages", "b.md"), []byte("- new"), 0o644)
	time.Sleep(300 * time.Millisecond)

	got := c.all()
	if got["pages/a.md"] || !got["pages/b.md"] {
		t.Errorf("expected only pages/b.md, got %v", got)
	}
}

func TestWatcher_ChangedChannel(t *testing.T) {
	dir := graphDir(t)
	w, err := NewWatcher(dir, WithForcePoll(true), WithPollInterval(30*time.Millisecond), WithDebounceDuration(30*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	time.Sleep(60 * time.Millisecond)
	_ = os.Remove(filepath.Join(dir, "pages", "a.md"))

	select {
	case paths := <-w.Changed():
		if len(paths) != 1 || paths[0] != "pages/a.md" {
			t.Errorf("expected [pages/a.md], got %v", paths)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for removal")
	}
}

func TestWatcher_StartErrors(t *testing.T) {
	dir := graphDir(t)
	w, _ := NewWatcher(filepath.Join(dir, "pages", "a.md"))
	if err := w.Start(); !errors.Is(err, ErrNotDirectory) {
		t.Errorf("expected ErrNotDirectory, got %v", err)
	}

	w, _ = NewWatcher(dir)
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()
	if err := w.Start(); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("expected ErrAlreadyStarted, got %v", err)
	}
	if !w.IsStarted() {
		t.Error("expected watcher to be started")
	}
}

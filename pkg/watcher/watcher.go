// Package watcher reports changes to the note files of a graph directory.
package watcher

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vanderheijden86/blockmap/pkg/debug"
)

// DefaultPollInterval is the default polling interval for fallback mode.
const DefaultPollInterval = 2 * time.Second

// Common errors.
var (
	ErrNotDirectory   = errors.New("watched path is not a directory")
	ErrPermission     = errors.New("permission denied")
	ErrAlreadyStarted = errors.New("watcher already started")
)

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounceDuration sets the debounce duration.
func WithDebounceDuration(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounceDuration = d
	}
}

// WithPollInterval sets the polling interval for fallback mode.
func WithPollInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.pollInterval = d
	}
}

// WithOnChange sets the callback invoked with the changed files, relative to
// the root and slash-separated.
func WithOnChange(fn func(paths []string)) WatcherOption {
	return func(w *Watcher) {
		w.onChange = fn
	}
}

// WithOnError sets the callback invoked on errors.
func WithOnError(fn func(error)) WatcherOption {
	return func(w *Watcher) {
		w.onError = fn
	}
}

// WithForcePoll forces polling mode even if fsnotify is available.
func WithForcePoll(force bool) WatcherOption {
	return func(w *Watcher) {
		w.forcePoll = force
	}
}

// WithFilter restricts reported files. keep receives the slash-separated
// path relative to the root; directories end with "/".
func WithFilter(keep func(rel string) bool) WatcherOption {
	return func(w *Watcher) {
		w.keep = keep
	}
}

// NoteFiles keeps markdown and org files.
func NoteFiles(rel string) bool {
	if strings.HasSuffix(rel, "/") {
		return !strings.HasPrefix(filepath.Base(strings.TrimSuffix(rel, "/")), ".")
	}
	switch strings.ToLower(filepath.Ext(rel)) {
	case ".md", ".markdown", ".org":
		return true
	}
	return false
}

type fileState struct {
	mtime time.Time
	size  int64
}

// Watcher monitors a directory tree using fsnotify with polling fallback.
type Watcher struct {
	root             string
	debounceDuration time.Duration
	pollInterval     time.Duration
	onChange         func([]string)
	onError          func(error)
	forcePoll        bool
	keep             func(string) bool

	fsWatcher   *fsnotify.Watcher
	debouncer   *Debouncer
	useFallback bool
	snapshot    map[string]fileState
	pending     map[string]struct{}

	ctx      context.Context
	cancel   context.CancelFunc
	started  bool
	mu       sync.RWMutex
	changeCh chan []string
}

// NewWatcher creates a watcher for the directory at root.
func NewWatcher(root string, opts ...WatcherOption) (*Watcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		root:             abs,
		debounceDuration: DefaultDebounceDuration,
		pollInterval:     DefaultPollInterval,
		onChange:         func([]string) {},
		onError:          func(error) {},
		keep:             NoteFiles,
		pending:          make(map[string]struct{}),
		changeCh:         make(chan []string, 1),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.debouncer = NewDebouncer(w.debounceDuration)
	return w, nil
}

// Start begins watching.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return ErrAlreadyStarted
	}
	info, err := os.Stat(w.root)
	if err != nil {
		if os.IsPermission(err) {
			return ErrPermission
		}
		return err
	}
	if !info.IsDir() {
		return ErrNotDirectory
	}

	w.ctx, w.cancel = context.WithCancel(context.Background())
	w.useFallback = w.forcePoll || envBool("BM_FORCE_POLL")
	w.snapshot = w.scan()

	if !w.useFallback {
		if fsw, err := fsnotify.NewWatcher(); err == nil {
			if err := w.addTree(fsw, w.root); err != nil {
				fsw.Close()
				w.useFallback = true
			} else {
				w.fsWatcher = fsw
				go w.watchFsnotify(fsw)
			}
		} else {
			w.useFallback = true
		}
	}
	if w.useFallback {
		go w.watchPolling()
	}
	debug.Log("watcher: started on %s (polling=%v, files=%d)", w.root, w.useFallback, len(w.snapshot))

	w.started = true
	return nil
}

// Stop stops watching. The Changed channel stays open.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.started {
		return
	}
	if w.cancel != nil {
		w.cancel()
	}
	if w.fsWatcher != nil {
		w.fsWatcher.Close()
		w.fsWatcher = nil
	}
	w.debouncer.Cancel()
	w.started = false
}

// IsPolling returns true if the watcher is using polling mode.
func (w *Watcher) IsPolling() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.useFallback
}

// IsStarted returns true if the watcher is running.
func (w *Watcher) IsStarted() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.started
}

// Changed receives each debounced batch of changed files.
func (w *Watcher) Changed() <-chan []string {
	return w.changeCh
}

// Root returns the watched directory.
func (w *Watcher) Root() string {
	return w.root
}

func envBool(name string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}

func (w *Watcher) rel(path string) (string, bool) {
	r, err := filepath.Rel(w.root, path)
	if err != nil || r == "." || strings.HasPrefix(r, "..") {
		return "", false
	}
	return filepath.ToSlash(r), true
}

// addTree adds dir and every kept subdirectory to fsw.
func (w *Watcher) addTree(fsw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if rel, ok := w.rel(path); ok && !w.keep(rel+"/") {
			return filepath.SkipDir
		}
		return fsw.Add(path)
	})
}

// scan records the state of every kept file.
func (w *Watcher) scan() map[string]fileState {
	out := make(map[string]fileState)
	_ = filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, ok := w.rel(path)
		if !ok {
			return nil
		}
		if d.IsDir() {
			if !w.keep(rel + "/") {
				return filepath.SkipDir
			}
			return nil
		}
		if !w.keep(rel) {
			return nil
		}
		if info, err := d.Info(); err == nil {
			out[rel] = fileState{mtime: info.ModTime(), size: info.Size()}
		}
		return nil
	})
	return out
}

func (w *Watcher) watchFsnotify(fsw *fsnotify.Watcher) {
	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			rel, ok := w.rel(event.Name)
			if !ok {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if w.keep(rel + "/") {
						if err := w.addTree(fsw, event.Name); err != nil {
							w.onError(err)
						}
					}
					continue
				}
			}
			if !w.keep(rel) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
				w.record(rel)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.onError(err)
		}
	}
}

func (w *Watcher) watchPolling() {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			next := w.scan()
			w.mu.Lock()
			prev := w.snapshot
			w.snapshot = next
			w.mu.Unlock()
			for rel, st := range next {
				if old, ok := prev[rel]; !ok || !old.mtime.Equal(st.mtime) || old.size != st.size {
					w.record(rel)
				}
			}
			for rel := range prev {
				if _, ok := next[rel]; !ok {
					w.record(rel)
				}
			}
		}
	}
}

func (w *Watcher) record(rel string) {
	w.mu.Lock()
	w.pending[rel] = struct{}{}
	w.mu.Unlock()
	w.debouncer.Trigger(w.flush)
}

// flush hands the pending batch to the callback and the channel.
func (w *Watcher) flush() {
	w.mu.Lock()
	if !w.started || len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	w.pending = make(map[string]struct{})
	w.mu.Unlock()

	sort.Strings(paths)
	debug.Log("watcher: %d changed: %v", len(paths), paths)
	w.onChange(paths)

	select {
	case w.changeCh <- paths:
	default:
	}
}

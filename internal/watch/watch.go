// Package watch polls a directory for new or changed caption files. Changes
// are detected by modification time first and confirmed by a SHA-256 of the
// content, so touching a file without editing it is not reported.
package watch

import (
	"crypto/sha256"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"
)

// Op describes what happened to a file.
type Op int

const (
	// Created is reported the first time a file is seen after the initial scan.
	Created Op = iota + 1

	// Modified is reported when a known file's content hash changes.
	Modified
)

// String implements [fmt.Stringer].
func (o Op) String() string {
	switch o {
	case Created:
		return "created"
	case Modified:
		return "modified"
	default:
		return fmt.Sprintf("Op(%d)", int(o))
	}
}

// Event reports a changed caption file.
type Event struct {
	Path string
	Op   Op
}

// fileState is the last known state of one file, used for change detection.
type fileState struct {
	mtime time.Time
	hash  [sha256.Size]byte
}

// Watcher monitors a directory and calls a callback for every caption file
// that appears or whose content changes.
type Watcher struct {
	dir        string
	ext        string
	skipSuffix string
	interval   time.Duration
	initial    bool
	onEvent    func(Event)

	mu       sync.Mutex
	files    map[string]fileState
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// Option configures a [Watcher].
type Option func(*Watcher)

// WithInterval sets the polling interval. The default is 5 seconds.
func WithInterval(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithExtension restricts the watcher to files with the given extension
// (case-insensitive). The default is ".vtt".
func WithExtension(ext string) Option {
	return func(w *Watcher) {
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		w.ext = strings.ToLower(ext)
	}
}

// WithSkipSuffix ignores files whose base name, without extension, ends in
// suffix. Used to keep compacted output written into the watched directory
// from being picked up again.
func WithSkipSuffix(suffix string) Option {
	return func(w *Watcher) {
		w.skipSuffix = suffix
	}
}

// WithInitialEvents reports files already present at start as [Created].
// By default they are only recorded.
func WithInitialEvents(enabled bool) Option {
	return func(w *Watcher) {
		w.initial = enabled
	}
}

// New creates a directory watcher. It scans dir immediately and starts
// polling in a background goroutine. onEvent is called from that goroutine,
// one event at a time.
func New(dir string, onEvent func(Event), opts ...Option) (*Watcher, error) {
	w := &Watcher{
		dir:      dir,
		ext:      ".vtt",
		interval: 5 * time.Second,
		onEvent:  onEvent,
		files:    make(map[string]fileState),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("watch: stat %q: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch: %q is not a directory", dir)
	}

	events, err := w.scan()
	if err != nil {
		return nil, fmt.Errorf("watch: initial scan: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if w.initial {
			w.emit(events)
		}
		w.poll()
	}()
	return w, nil
}

// Known returns the paths of all tracked files in sorted order.
func (w *Watcher) Known() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	paths := make([]string, 0, len(w.files))
	for p := range w.files {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	return paths
}

// Stop stops polling and waits for an in-flight callback to return. It must
// not be called from the callback itself.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
	})
	w.wg.Wait()
}

// poll runs in a background goroutine, scanning the directory periodically.
func (w *Watcher) poll() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			events, err := w.scan()
			if err != nil {
				slog.Warn("watch: scan failed", "dir", w.dir, "err", err)
				continue
			}
			w.emit(events)
		}
	}
}

func (w *Watcher) emit(events []Event) {
	if w.onEvent == nil {
		return
	}
	for _, ev := range events {
		select {
		case <-w.done:
			return
		default:
		}
		slog.Debug("watch: file changed", "path", ev.Path, "op", ev.Op)
		w.onEvent(ev)
	}
}

// scan lists matching files and returns events for new and changed ones.
// Files that vanished are forgotten so that a re-created file is reported
// as new.
func (w *Watcher) scan() ([]Event, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	var events []Event
	present := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if e.IsDir() || !w.matches(e.Name()) {
			continue
		}
		path := filepath.Join(w.dir, e.Name())
		present[path] = struct{}{}

		info, err := e.Info()
		if err != nil {
			continue
		}
		prev, known := w.files[path]
		// Quick mtime check first to avoid hashing unchanged files.
		if known && info.ModTime().Equal(prev.mtime) {
			continue
		}

		hash, err := hashFile(path)
		if err != nil {
			slog.Warn("watch: cannot read file", "path", path, "err", err)
			continue
		}
		w.files[path] = fileState{mtime: info.ModTime(), hash: hash}

		switch {
		case !known:
			events = append(events, Event{Path: path, Op: Created})
		case hash != prev.hash:
			events = append(events, Event{Path: path, Op: Modified})
		}
	}
	for path := range w.files {
		if _, ok := present[path]; !ok {
			delete(w.files, path)
		}
	}

	slices.SortFunc(events, func(a, b Event) int { return strings.Compare(a.Path, b.Path) })
	return events, nil
}

func (w *Watcher) matches(name string) bool {
	ext := filepath.Ext(name)
	if w.ext != "" && strings.ToLower(ext) != w.ext {
		return false
	}
	if w.skipSuffix != "" && strings.HasSuffix(strings.TrimSuffix(name, ext), w.skipSuffix) {
		return false
	}
	return true
}

func hashFile(path string) ([sha256.Size]byte, error) {
	var sum [sha256.Size]byte
	f, err := os.Open(path)
	if err != nil {
		return sum, err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return sum, err
	}
	copy(sum[:], h.Sum(nil))
	return sum, nil
}

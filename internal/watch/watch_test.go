package watch_test

import (
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/parley/internal/watch"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write file %q: %v", path, err)
	}
}

// recorder collects events and signals each arrival.
type recorder struct {
	mu     sync.Mutex
	events []watch.Event
	ch     chan struct{}
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan struct{}, 16)}
}

func (r *recorder) on(ev watch.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	select {
	case r.ch <- struct{}{}:
	default:
	}
}

func (r *recorder) wait(t *testing.T) {
	t.Helper()
	select {
	case <-r.ch:
	case <-time.After(2 * time.Second):
		t.Fatal("callback was not invoked within timeout")
	}
}

func (r *recorder) snapshot() []watch.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]watch.Event(nil), r.events...)
}

func TestWatcher_ExistingFilesAreNotReported(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.vtt"), "WEBVTT\n")

	rec := newRecorder()
	w, err := watch.New(dir, rec.on, watch.WithInterval(50*time.Millisecond))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer w.Stop()

	time.Sleep(200 * time.Millisecond)
	if got := rec.snapshot(); len(got) != 0 {
		t.Errorf("got events %v, want none", got)
	}
	if got, want := w.Known(), []string{filepath.Join(dir, "a.vtt")}; !reflect.DeepEqual(got, want) {
		t.Errorf("Known: got %v, want %v", got, want)
	}
}

func TestWatcher_InitialEvents(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.vtt"), "WEBVTT\n")

	rec := newRecorder()
	w, err := watch.New(dir, rec.on, watch.WithInterval(time.Hour), watch.WithInitialEvents(true))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer w.Stop()

	rec.wait(t)
	want := []watch.Event{{Path: filepath.Join(dir, "a.vtt"), Op: watch.Created}}
	if got := rec.snapshot(); !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestWatcher_DetectsNewAndModified(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "standup.vtt")

	rec := newRecorder()
	w, err := watch.New(dir, rec.on, watch.WithInterval(50*time.Millisecond))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer w.Stop()

	writeFile(t, path, "WEBVTT\n")
	rec.wait(t)

	time.Sleep(100 * time.Millisecond)
	writeFile(t, path, "WEBVTT\n\n1\n00:00:00.000 --> 00:00:01.000\nA: hi\n")
	later := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	rec.wait(t)

	want := []watch.Event{
		{Path: path, Op: watch.Created},
		{Path: path, Op: watch.Modified},
	}
	if got := rec.snapshot(); !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestWatcher_FiltersExtensionAndSuffix(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	rec := newRecorder()
	w, err := watch.New(dir, rec.on,
		watch.WithInterval(50*time.Millisecond),
		watch.WithSkipSuffix("_CMT"),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer w.Stop()

	writeFile(t, filepath.Join(dir, "notes.txt"), "x")
	writeFile(t, filepath.Join(dir, "standup_CMT.vtt"), "x")
	writeFile(t, filepath.Join(dir, "Retro.VTT"), "x")
	rec.wait(t)
	time.Sleep(150 * time.Millisecond)

	want := []watch.Event{{Path: filepath.Join(dir, "Retro.VTT"), Op: watch.Created}}
	if got := rec.snapshot(); !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestWatcher_TouchWithoutContentChange(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "a.vtt")
	writeFile(t, path, "WEBVTT\n")

	rec := newRecorder()
	w, err := watch.New(dir, rec.on, watch.WithInterval(50*time.Millisecond))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer w.Stop()

	time.Sleep(100 * time.Millisecond)
	now := time.Now().Add(time.Second)
	if err := os.Chtimes(path, now, now); err != nil {
		t.Fatalf("failed to touch file: %v", err)
	}
	time.Sleep(300 * time.Millisecond)

	if got := rec.snapshot(); len(got) != 0 {
		t.Errorf("callback should not fire for touch-only, got %v", got)
	}
}

func TestWatcher_MissingDir(t *testing.T) {
	t.Parallel()
	if _, err := watch.New("/nonexistent/captions", nil); err == nil {
		t.Fatal("expected error for non-existent directory, got nil")
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	t.Parallel()
	w, err := watch.New(t.TempDir(), nil, watch.WithInterval(50*time.Millisecond))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	w.Stop()
	w.Stop()
}

func TestOp_String(t *testing.T) {
	t.Parallel()
	if watch.Created.String() != "created" || watch.Modified.String() != "modified" {
		t.Errorf("got %q, %q", watch.Created, watch.Modified)
	}
}

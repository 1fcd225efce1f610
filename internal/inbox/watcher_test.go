package inbox

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"narrate/internal/logging"
)

type recorder struct {
	mu    sync.Mutex
	paths []string
	seen  chan string
	err   error
}

func newRecorder() *recorder {
	return &recorder{seen: make(chan string, 8)}
}

func (r *recorder) handle(_ context.Context, path string) error {
	r.mu.Lock()
	r.paths = append(r.paths, path)
	r.mu.Unlock()
	select {
	case r.seen <- path:
	default:
	}
	return r.err
}

func TestAccepts(t *testing.T) {
	cases := map[string]bool{
		"book.txt":        true,
		"book.TXT":        true,
		"chapter.html":    true,
		"chapter.xhtml":   true,
		"cover.jpg":       false,
		".book.txt.swp":   false,
		".hidden.txt":     false,
		"~lock.book.txt":  false,
		"no-extension":    false,
		"archive.txt.zip": false,
	}
	for name, want := range cases {
		if got := Accepts(name); got != want {
			t.Errorf("Accepts(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestScanHandlesExistingFilesInOrder(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.txt", "a.txt", "cover.png"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("第1章\n正文"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	rec := newRecorder()
	w := New(dir, rec.handle, logging.NewNop())

	handled, err := w.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if handled != 2 {
		t.Fatalf("expected 2 handled, got %d", handled)
	}
	if filepath.Base(rec.paths[0]) != "a.txt" || filepath.Base(rec.paths[1]) != "b.txt" {
		t.Fatalf("unexpected order %v", rec.paths)
	}
}

func TestScanCountsOnlySuccesses(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	rec := newRecorder()
	rec.err = errors.New("empty input")
	handled, err := New(dir, rec.handle, logging.NewNop()).Scan(context.Background())
	if err != nil || handled != 0 {
		t.Fatalf("expected 0 handled without error, got %d %v", handled, err)
	}
}

func TestScanMissingDirectory(t *testing.T) {
	w := New(filepath.Join(t.TempDir(), "missing"), newRecorder().handle, logging.NewNop())
	if _, err := w.Scan(context.Background()); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestRunHandlesNewUploads(t *testing.T) {
	dir := t.TempDir()
	rec := newRecorder()
	w := New(dir, rec.handle, logging.NewNop(), WithSettle(20*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	target := filepath.Join(dir, "雨夜.txt")
	ignored := filepath.Join(dir, "cover.jpg")
	deadline := time.After(5 * time.Second)
	// The watcher registers asynchronously; rewrite until the event lands.
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	var got string
	for got == "" {
		if err := os.WriteFile(ignored, []byte("jpg"), 0o644); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(target, []byte("第1章\n正文"), 0o644); err != nil {
			t.Fatal(err)
		}
		select {
		case got = <-rec.seen:
		case <-ticker.C:
		case <-deadline:
			t.Fatal("upload was not handled")
		}
	}
	if got != target {
		t.Fatalf("handled %q, want %q", got, target)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	for _, p := range rec.paths {
		if filepath.Ext(p) == ".jpg" {
			t.Fatalf("non-source file handled: %s", p)
		}
	}
}

func TestDebouncerDropsTimerSupersededAfterFiring(t *testing.T) {
	d := newDebouncer(10 * time.Millisecond)
	defer d.stop()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "雨夜.txt")

	d.touch(ctx, path)
	var fired settled
	select {
	case fired = <-d.ready:
	case <-time.After(2 * time.Second):
		t.Fatal("settle timer did not fire")
	}

	// A write lands after the timer fired but before the path was taken.
	d.touch(ctx, path)
	if d.take(fired) {
		t.Fatal("superseded timer should not hand the path over")
	}

	var latest settled
	select {
	case latest = <-d.ready:
	case <-time.After(2 * time.Second):
		t.Fatal("rearmed timer did not fire")
	}
	if !d.take(latest) {
		t.Fatal("latest timer should hand the path over")
	}
	if d.take(latest) {
		t.Fatal("a path is handed over once per settle")
	}
	select {
	case extra := <-d.ready:
		t.Fatalf("unexpected extra settle for %s", extra.path)
	case <-time.After(50 * time.Millisecond):
	}
}

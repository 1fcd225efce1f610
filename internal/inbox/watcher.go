package inbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"narrate/internal/logging"
	"narrate/internal/services"
)

const defaultSettle = time.Second

// Handler processes one settled source file.
type Handler func(ctx context.Context, path string) error

// Watcher feeds new source files in a directory to a Handler.
type Watcher struct {
	dir    string
	handle Handler
	settle time.Duration
	logger *slog.Logger
}

// Option customizes a Watcher.
type Option func(*Watcher)

// WithSettle overrides how long a file must stay unchanged before handling.
func WithSettle(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.settle = d
		}
	}
}

// New constructs a Watcher over dir.
func New(dir string, handle Handler, logger *slog.Logger, opts ...Option) *Watcher {
	w := &Watcher{
		dir:    dir,
		handle: handle,
		settle: defaultSettle,
		logger: logging.NewComponentLogger(logger, "inbox"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Accepts reports whether path looks like a source text the chapterizer can
// read.
func Accepts(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasPrefix(base, "~") {
		return false
	}
	switch strings.ToLower(filepath.Ext(base)) {
	case ".txt", ".html", ".htm", ".xhtml":
		return true
	default:
		return false
	}
}

// Scan handles every acceptable file already present, in name order, and
// returns the number handled successfully.
func (w *Watcher) Scan(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return 0, services.Wrap(services.ErrNotFound, "watch", "scan inbox", w.dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.Type().IsRegular() && Accepts(entry.Name()) {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	handled := 0
	for _, name := range names {
		if ctx.Err() != nil {
			return handled, ctx.Err()
		}
		if w.process(ctx, filepath.Join(w.dir, name)) {
			handled++
		}
	}
	return handled, nil
}

// Run watches the directory until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return services.Wrap(services.ErrNotFound, "watch", "watch inbox", w.dir, err)
	}
	w.logger.Info("watching upload inbox",
		logging.String(logging.FieldEventType, "inbox_watch_start"),
		logging.String("dir", w.dir),
		logging.Duration("settle", w.settle),
	)

	settle := newDebouncer(w.settle)
	defer settle.stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) || !Accepts(event.Name) {
				continue
			}
			settle.touch(ctx, event.Name)
		case s := <-settle.ready:
			if settle.take(s) {
				w.process(ctx, s.path)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.WarnWithContext(w.logger, "inbox watcher error", "inbox_watch_error",
				logging.Error(err),
				logging.String(logging.FieldImpact, "an upload may have been missed"),
				logging.String(logging.FieldErrorHint, "restart `narrate watch` to rescan the inbox"),
			)
		}
	}
}

func (w *Watcher) process(ctx context.Context, path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	started := time.Now()
	if err := w.handle(ctx, path); err != nil {
		if errors.Is(err, context.Canceled) {
			return false
		}
		logging.WarnWithContext(w.logger, "upload initialization failed", "inbox_init_failed",
			append(logging.FailureAttrs(err),
				logging.String("source", path),
				logging.String(logging.FieldImpact, "the upload was not turned into a work"),
			)...)
		return false
	}
	w.logger.Info("upload initialized",
		logging.String(logging.FieldEventType, "inbox_init"),
		logging.String("source", path),
		logging.Duration("elapsed", time.Since(started)),
	)
	return true
}

type settled struct {
	path string
	gen  uint64
}

type settleTimer struct {
	timer *time.Timer
	gen   uint64
}

// debouncer emits a path once it has seen no events for the settle period.
// A timer that fired before a newer event is superseded by generation.
type debouncer struct {
	settle  time.Duration
	ready   chan settled
	pending map[string]settleTimer
	gen     uint64
}

func newDebouncer(settle time.Duration) *debouncer {
	return &debouncer{
		settle:  settle,
		ready:   make(chan settled, 16),
		pending: map[string]settleTimer{},
	}
}

func (d *debouncer) touch(ctx context.Context, path string) {
	if current, ok := d.pending[path]; ok {
		current.timer.Stop()
	}
	d.gen++
	s := settled{path: path, gen: d.gen}
	d.pending[path] = settleTimer{
		gen: s.gen,
		timer: time.AfterFunc(d.settle, func() {
			select {
			case d.ready <- s:
			case <-ctx.Done():
			}
		}),
	}
}

// take reports whether s is the latest timer for its path and clears it.
func (d *debouncer) take(s settled) bool {
	current, ok := d.pending[s.path]
	if !ok || current.gen != s.gen {
		return false
	}
	delete(d.pending, s.path)
	return true
}

func (d *debouncer) stop() {
	for _, t := range d.pending {
		t.timer.Stop()
	}
}

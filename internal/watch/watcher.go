// Package watch rebuilds the site when its sources change.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-co-op/gocron/v2"

	"github.com/himu-me/notepress/internal/logfields"
)

// Options configures a Watcher.
type Options struct {
	// Dirs are watched recursively. Missing directories are skipped.
	Dirs []string
	// Files are watched through their parent directory.
	Files []string
	// Debounce is the quiet period before a rebuild is queued.
	Debounce time.Duration
	// Schedule, when positive, queues a rebuild at that interval.
	Schedule time.Duration
	Logger   *slog.Logger
}

// Watcher queues a build on every relevant filesystem change.
type Watcher struct {
	opts  Options
	log   *slog.Logger
	queue *Queue
	files map[string]bool
}

// New returns a watcher that runs build through a coalescing queue.
func New(build BuildFunc, opts Options) *Watcher {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 300 * time.Millisecond
	}
	files := make(map[string]bool, len(opts.Files))
	for _, f := range opts.Files {
		if abs, err := filepath.Abs(f); err == nil {
			files[abs] = true
		}
	}
	return &Watcher{
		opts:  opts,
		log:   log,
		queue: NewQueue(build, log),
		files: files,
	}
}

// Run performs an initial build, then watches until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify: %w", err)
	}
	defer func() { _ = fsw.Close() }()

	for _, dir := range w.opts.Dirs {
		w.addDirsRecursive(fsw, dir)
	}
	for f := range w.files {
		if err := fsw.Add(filepath.Dir(f)); err != nil {
			w.log.Warn("Watch add failed", logfields.Path(f), logfields.Error(err))
		}
	}

	if w.opts.Schedule > 0 {
		sched, err := w.startScheduler()
		if err != nil {
			return err
		}
		defer func() {
			if err := sched.Shutdown(); err != nil {
				w.log.Warn("Scheduler shutdown failed", logfields.Error(err))
			}
		}()
	}

	deb := newDebouncer(w.opts.Debounce, func() { w.queue.Trigger("change") })
	defer deb.stop()

	w.queue.Trigger("initial")
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.queue.Run(ctx)
	}()

	w.log.Info("Watching for changes",
		"dirs", len(w.opts.Dirs),
		"debounce", w.opts.Debounce.String(),
		"schedule", w.opts.Schedule.String())

	for {
		select {
		case <-ctx.Done():
			<-done
			w.log.Info("Watch stopped")
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if w.handleEvent(fsw, ev) {
				deb.poke()
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("Watcher error", logfields.Error(err))
		}
	}
}

func (w *Watcher) startScheduler() (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	_, err = sched.NewJob(
		gocron.DurationJob(w.opts.Schedule),
		gocron.NewTask(func() { w.queue.Trigger("schedule") }),
		gocron.WithName("scheduled-rebuild"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, fmt.Errorf("failed to create scheduled rebuild: %w", err)
	}
	sched.Start()
	return sched, nil
}

// handleEvent reports whether ev should trigger a rebuild. Newly created
// directories are added to the watch set.
func (w *Watcher) handleEvent(fsw *fsnotify.Watcher, ev fsnotify.Event) bool {
	if ev.Op == fsnotify.Chmod || shouldIgnore(ev.Name) {
		return false
	}
	if !w.relevant(ev.Name) {
		return false
	}
	if ev.Op&fsnotify.Create == fsnotify.Create {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			w.addDirsRecursive(fsw, ev.Name)
		}
	}
	w.log.Debug("File change detected", logfields.Path(ev.Name), "op", ev.Op.String())
	return true
}

// relevant filters events from directories added only to observe a file.
func (w *Watcher) relevant(name string) bool {
	abs, err := filepath.Abs(name)
	if err != nil {
		return true
	}
	if w.files[abs] {
		return true
	}
	for _, dir := range w.opts.Dirs {
		d, err := filepath.Abs(dir)
		if err != nil {
			continue
		}
		if abs == d || strings.HasPrefix(abs, d+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func (w *Watcher) addDirsRecursive(fsw *fsnotify.Watcher, root string) {
	_ = filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := fsw.Add(p); err != nil {
			w.log.Warn("Watch add failed", logfields.Path(p), logfields.Error(err))
		}
		return nil
	})
}

// shouldIgnore reports hidden, editor swap and OS metadata files.
func shouldIgnore(p string) bool {
	base := filepath.Base(p)
	switch {
	case strings.HasPrefix(base, "."):
		return true
	case strings.HasSuffix(base, "~"),
		strings.HasSuffix(base, ".swp"),
		strings.HasSuffix(base, ".swx"),
		strings.HasSuffix(base, ".tmp"):
		return true
	case strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#"):
		return true
	case base == "Thumbs.db":
		return true
	}
	return false
}

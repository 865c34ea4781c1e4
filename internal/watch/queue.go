package watch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/himu-me/notepress/internal/logfields"
)

// BuildFunc runs one build.
type BuildFunc func(ctx context.Context) error

// Queue serializes builds with a pending slot of depth one: triggers that
// arrive while a build runs collapse into a single follow-up build.
type Queue struct {
	build   BuildFunc
	log     *slog.Logger
	pending chan string

	mu     sync.Mutex
	runs   int
	failed int
}

// NewQueue returns a queue that runs build for every coalesced trigger.
func NewQueue(build BuildFunc, log *slog.Logger) *Queue {
	if log == nil {
		log = slog.Default()
	}
	return &Queue{
		build:   build,
		log:     log,
		pending: make(chan string, 1),
	}
}

// Trigger requests a build. It never blocks; a request made while another
// is already pending is dropped.
func (q *Queue) Trigger(reason string) {
	select {
	case q.pending <- reason:
		q.log.Debug("Rebuild queued", logfields.Reason(reason))
	default:
		q.log.Debug("Rebuild already pending", logfields.Reason(reason))
	}
}

// Run processes triggers until ctx is done. Build failures are logged and
// do not stop the loop.
func (q *Queue) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case reason := <-q.pending:
			q.runOnce(ctx, reason)
		}
	}
}

func (q *Queue) runOnce(ctx context.Context, reason string) {
	start := time.Now()
	q.log.Info("Rebuilding site", logfields.Reason(reason))
	err := q.build(ctx)

	q.mu.Lock()
	q.runs++
	if err != nil {
		q.failed++
	}
	q.mu.Unlock()

	if err != nil {
		q.log.Warn("Rebuild failed", logfields.Error(err), logfields.Duration(time.Since(start)))
		return
	}
	q.log.Debug("Rebuild finished", logfields.Duration(time.Since(start)))
}

// Stats returns the number of builds run and how many of them failed.
func (q *Queue) Stats() (runs, failed int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.runs, q.failed
}

// debouncer delays a trigger until no event arrived for the window.
type debouncer struct {
	mu     sync.Mutex
	timer  *time.Timer
	window time.Duration
	fire   func()
}

func newDebouncer(window time.Duration, fire func()) *debouncer {
	return &debouncer{window: window, fire: fire}
}

func (d *debouncer) poke() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.fire)
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
}

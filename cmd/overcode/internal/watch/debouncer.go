// Package watch re-indexes a source tree when files under it change.
package watch

import (
	"sync"
	"time"

	"github.com/albertocavalcante/overcode/pkg/util"
)

// DefaultMaxPending is the pending-path limit used when none is configured.
// Reaching the limit triggers a flush immediately so that bulk operations
// (checkouts, generators) do not grow the set without bound.
const DefaultMaxPending = 1000

// Debouncer coalesces rapid file change events into one batch.
// A batch is delivered after the window passes with no new events, or as
// soon as maxPending distinct paths are waiting.
type Debouncer struct {
	mu         sync.Mutex
	pending    util.Set[string]
	timer      *time.Timer
	window     time.Duration
	maxPending int
	onFlush    func(paths []string)
	stopped    bool
}

// NewDebouncer creates a debouncer with the given window duration.
// maxPending <= 0 selects DefaultMaxPending. onFlush receives the sorted
// batch and is never called with the debouncer's lock held.
func NewDebouncer(window time.Duration, maxPending int, onFlush func(paths []string)) *Debouncer {
	if maxPending <= 0 {
		maxPending = DefaultMaxPending
	}
	return &Debouncer{
		pending:    util.NewSet[string](),
		window:     window,
		maxPending: maxPending,
		onFlush:    onFlush,
	}
}

// Add records a change to path. Repeated paths within a window coalesce.
func (d *Debouncer) Add(path string) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}

	d.pending.Add(path)

	if len(d.pending) >= d.maxPending {
		batch := d.takeLocked()
		d.mu.Unlock()
		d.deliver(batch)
		return
	}

	// Stop may race with an already-fired timer; flush then finds either
	// an empty set or this event, both of which are fine.
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
	d.mu.Unlock()
}

// flush is called when the timer expires.
func (d *Debouncer) flush() {
	d.mu.Lock()
	var batch []string
	if !d.stopped {
		batch = d.takeLocked()
	}
	d.mu.Unlock()
	d.deliver(batch)
}

// FlushNow delivers pending paths without waiting for the timer.
func (d *Debouncer) FlushNow() {
	d.mu.Lock()
	var batch []string
	if !d.stopped {
		batch = d.takeLocked()
	}
	d.mu.Unlock()
	d.deliver(batch)
}

// Stop stops the debouncer. Pending paths are flushed once; later calls to
// Add are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	batch := d.takeLocked()
	d.stopped = true
	d.mu.Unlock()
	d.deliver(batch)
}

// PendingCount returns the number of paths waiting to be flushed.
func (d *Debouncer) PendingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// takeLocked stops the timer and empties the pending set.
// Caller must hold d.mu.
func (d *Debouncer) takeLocked() []string {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if len(d.pending) == 0 {
		return nil
	}
	batch := util.Sorted(d.pending)
	d.pending = util.NewSet[string]()
	return batch
}

func (d *Debouncer) deliver(batch []string) {
	if len(batch) > 0 && d.onFlush != nil {
		d.onFlush(batch)
	}
}

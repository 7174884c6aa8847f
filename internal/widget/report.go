package widget

import (
	"sync"
	"time"
)

const reportDebounce = 500 * time.Millisecond

// ReadReporter debounces read-boundary reports so a burst of scroll and
// incoming-message events collapses into one server call carrying the
// latest boundary.
type ReadReporter struct {
	mu       sync.Mutex
	report   func(boundaryID string)
	debounce time.Duration
	timer    *time.Timer
	boundary string
	closed   bool
}

func NewReadReporter(report func(boundaryID string)) *ReadReporter {
	return &ReadReporter{
		report:   report,
		debounce: reportDebounce,
	}
}

// NewReadReporterWithDebounce is used by tests to shrink the window.
func NewReadReporterWithDebounce(report func(boundaryID string), debounce time.Duration) *ReadReporter {
	return &ReadReporter{
		report:   report,
		debounce: debounce,
	}
}

// Observe records the newest read boundary and (re)arms the debounce
// timer. Only the latest boundary at fire time is reported.
func (r *ReadReporter) Observe(boundaryID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || boundaryID == "" {
		return
	}
	r.boundary = boundaryID

	if r.timer != nil {
		r.timer.Stop()
	}
	r.timer = time.AfterFunc(r.debounce, r.fire)
}

func (r *ReadReporter) fire() {
	r.mu.Lock()
	boundary := r.boundary
	r.boundary = ""
	closed := r.closed
	r.mu.Unlock()

	if closed || boundary == "" {
		return
	}
	r.report(boundary)
}

// Flush reports any pending boundary immediately.
func (r *ReadReporter) Flush() {
	r.mu.Lock()
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.mu.Unlock()
	r.fire()
}

// Close drops any pending report, used when the widget unmounts.
func (r *ReadReporter) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

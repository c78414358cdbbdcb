// Package debounce delays propagation of a rapidly changing value until it has
// been stable for a fixed interval.
package debounce

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	appErrors "github.com/charlesng35/userdash/pkg/errors"
	"github.com/charlesng35/userdash/pkg/metrics"
)

// DefaultSearchDelay is the settle interval used for free-text search input.
const DefaultSearchDelay = 500 * time.Millisecond

// Option customises a Debouncer.
type Option func(*options)

type options struct {
	clock clockwork.Clock
}

// WithClock injects the clock used to schedule timers, primarily for testing.
func WithClock(c clockwork.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// Debouncer is a trailing-edge debouncer. Set records the latest raw value and
// restarts the wait; once the raw value has been unchanged for the full delay it
// becomes the debounced value and emit is called with it. There is no leading
// emission, and emit only fires when the settled value differs from the last
// emitted one.
//
// emit runs on the clock's timer goroutine and must not call Close.
type Debouncer[T comparable] struct {
	delay time.Duration
	clock clockwork.Clock
	emit  func(T)

	emitMu sync.Mutex

	mu     sync.Mutex
	raw    T
	value  T
	timer  clockwork.Timer
	gen    uint64
	closed bool
}

// New builds a Debouncer whose debounced value starts at initial.
func New[T comparable](delay time.Duration, initial T, emit func(T), opts ...Option) (*Debouncer[T], error) {
	if delay <= 0 {
		return nil, appErrors.NewValidationError("debounce: delay must be positive")
	}
	if emit == nil {
		emit = func(T) {}
	}

	o := options{clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(&o)
	}

	return &Debouncer[T]{
		delay: delay,
		clock: o.clock,
		emit:  emit,
		raw:   initial,
		value: initial,
	}, nil
}

// Set records a new raw value and restarts the wait. A value equal to the current
// debounced value cancels any pending emission instead of scheduling one.
func (d *Debouncer[T]) Set(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}

	d.raw = v
	d.gen++
	d.stopLocked()

	if v == d.value {
		return
	}

	gen := d.gen
	d.timer = d.clock.AfterFunc(d.delay, func() { d.fire(gen) })
}

// Value returns the current debounced value.
func (d *Debouncer[T]) Value() T {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.value
}

// Raw returns the most recent value passed to Set.
func (d *Debouncer[T]) Raw() T {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.raw
}

// Pending reports whether an emission is scheduled.
func (d *Debouncer[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// Flush emits the pending raw value immediately, skipping the remaining wait.
// It reports whether anything was emitted.
func (d *Debouncer[T]) Flush() bool {
	d.emitMu.Lock()
	defer d.emitMu.Unlock()

	d.mu.Lock()
	if d.closed || d.timer == nil {
		d.mu.Unlock()
		return false
	}
	d.gen++
	d.stopLocked()
	v, changed := d.settleLocked()
	d.mu.Unlock()

	if changed {
		d.deliver(v)
	}
	return changed
}

// Close cancels any pending timer. It waits for an emission already in progress,
// after which emit is never called again.
func (d *Debouncer[T]) Close() {
	d.emitMu.Lock()
	defer d.emitMu.Unlock()

	d.mu.Lock()
	defer d.mu.Unlock()

	d.closed = true
	d.gen++
	d.stopLocked()
}

func (d *Debouncer[T]) fire(gen uint64) {
	d.emitMu.Lock()
	defer d.emitMu.Unlock()

	d.mu.Lock()
	if d.closed || gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	v, changed := d.settleLocked()
	d.mu.Unlock()

	if changed {
		d.deliver(v)
	}
}

func (d *Debouncer[T]) settleLocked() (T, bool) {
	if d.raw == d.value {
		return d.value, false
	}
	d.value = d.raw
	return d.value, true
}

func (d *Debouncer[T]) deliver(v T) {
	metrics.DebounceEmissions.Inc()
	d.emit(v)
}

func (d *Debouncer[T]) stopLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

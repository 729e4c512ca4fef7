package client

import (
	"sync"
	"time"

	"github.com/sneap/snipserve/pkg/snippet"
)

// OpState tracks one logical debounced operation through its lifecycle.
type OpState int

const (
	StateIdle OpState = iota
	StatePending
	StateResolved
	StateCancelled
	StateTimedOut
)

func (s OpState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePending:
		return "pending"
	case StateResolved:
		return "resolved"
	case StateCancelled:
		return "cancelled"
	case StateTimedOut:
		return "timed out"
	}
	return "unknown"
}

// Timer is the slice of *time.Timer the debouncer needs; tests substitute a
// manual implementation to drive time deterministically.
type Timer interface {
	Stop() bool
}

// TimerFactory schedules fn after d. The default wraps time.AfterFunc.
type TimerFactory func(d time.Duration, fn func()) Timer

func realTimer(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

type operation struct {
	state OpState
	timer Timer
	done  chan []snippet.Snippet
}

// Debouncer coalesces calls per logical key: a new call cancels the pending
// timer and restarts it, so only the last call inside a window executes.
// This is a latency/throughput trade for interactive typing, not a
// correctness mechanism; superseded callers get a closed channel.
type Debouncer struct {
	mu       sync.Mutex
	delay    time.Duration
	newTimer TimerFactory
	ops      map[string]*operation
}

// NewDebouncer builds a debouncer with the given window. A nil factory uses
// real timers.
func NewDebouncer(delay time.Duration, factory TimerFactory) *Debouncer {
	if factory == nil {
		factory = realTimer
	}
	return &Debouncer{
		delay:    delay,
		newTimer: factory,
		ops:      make(map[string]*operation),
	}
}

// Do schedules fn to run after the debounce window, replacing any pending
// run under the same key. The returned channel yields fn's result when this
// call wins the window, and closes empty when a newer call supersedes it.
func (d *Debouncer) Do(key string, fn func() []snippet.Snippet) <-chan []snippet.Snippet {
	d.mu.Lock()
	defer d.mu.Unlock()

	if prev, ok := d.ops[key]; ok && prev.state == StatePending {
		prev.timer.Stop()
		prev.state = StateCancelled
		close(prev.done)
	}

	op := &operation{
		state: StatePending,
		done:  make(chan []snippet.Snippet, 1),
	}
	d.ops[key] = op

	op.timer = d.newTimer(d.delay, func() {
		d.mu.Lock()
		if op.state != StatePending {
			d.mu.Unlock()
			return
		}
		op.state = StateResolved
		d.mu.Unlock()

		op.done <- fn()
		close(op.done)
	})
	return op.done
}

// MarkTimedOut records that the operation's network leg hit its deadline.
func (d *Debouncer) MarkTimedOut(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if op, ok := d.ops[key]; ok {
		op.state = StateTimedOut
	}
}

// State reports the current lifecycle state for a key.
func (d *Debouncer) State(key string) OpState {
	d.mu.Lock()
	defer d.mu.Unlock()
	if op, ok := d.ops[key]; ok {
		return op.state
	}
	return StateIdle
}

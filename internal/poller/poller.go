// Package poller repeatedly fetches the status of a long-running operation
// until it reaches a terminal state.
package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

const (
	DefaultInterval  = 5 * time.Second
	DefaultMaxErrors = 3
)

// ErrTimeout is returned when a poll runs longer than its Timeout.
var ErrTimeout = errors.New("poll timed out")

// Options controls a Poll.
type Options[T any] struct {
	// Interval between fetches. Zero selects DefaultInterval.
	Interval time.Duration
	// MaxErrors is how many consecutive fetch errors end the poll.
	// Zero selects DefaultMaxErrors.
	MaxErrors int
	// Timeout bounds the whole poll. Zero means no limit beyond ctx.
	Timeout time.Duration
	// IsTerminal reports whether a fetched value is final.
	IsTerminal func(T) bool
	// OnUpdate, if set, is called with every accepted value.
	OnUpdate func(T)
}

// Tracker keeps the latest value of a polled resource. Once a terminal value
// has been seen it is kept, and any later value is ignored, so a slow or
// stale response cannot move a finished operation back to in-progress.
type Tracker[T any] struct {
	mu         sync.Mutex
	isTerminal func(T) bool
	last       T
	seen       bool
	terminal   bool
}

func NewTracker[T any](isTerminal func(T) bool) *Tracker[T] {
	return &Tracker[T]{isTerminal: isTerminal}
}

// Observe records v unless a terminal value was seen earlier. It returns
// the current value and whether it is terminal.
func (t *Tracker[T]) Observe(v T) (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.terminal {
		return t.last, true
	}
	t.last = v
	t.seen = true
	t.terminal = t.isTerminal(v)
	return t.last, t.terminal
}

// Last returns the latest accepted value and whether any value was seen.
func (t *Tracker[T]) Last() (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last, t.seen
}

// Poll calls fetch immediately and then every interval until fetch returns
// a terminal value, ctx is done, the timeout passes, or fetch fails MaxErrors
// times in a row. Cancelling ctx only stops the polling, never the operation
// being polled.
func Poll[T any](ctx context.Context, fetch func(context.Context) (T, error), opts Options[T]) (T, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, opts.Timeout, ErrTimeout)
		defer cancel()
	}

	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	maxErrors := opts.MaxErrors
	if maxErrors <= 0 {
		maxErrors = DefaultMaxErrors
	}
	tracker := NewTracker(opts.IsTerminal)

	timer := time.NewTimer(0)
	defer timer.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			last, _ := tracker.Last()
			return last, stopErr(ctx, opts.Timeout)
		case <-timer.C:
		}

		v, err := fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				last, _ := tracker.Last()
				return last, stopErr(ctx, opts.Timeout)
			}
			failures++
			if failures >= maxErrors {
				last, _ := tracker.Last()
				return last, fmt.Errorf("poll failed %d times: %w", failures, err)
			}
			timer.Reset(interval)
			continue
		}
		failures = 0

		current, done := tracker.Observe(v)
		if opts.OnUpdate != nil {
			opts.OnUpdate(current)
		}
		if done {
			return current, nil
		}
		timer.Reset(interval)
	}
}

func stopErr(ctx context.Context, timeout time.Duration) error {
	if err := context.Cause(ctx); errors.Is(err, ErrTimeout) {
		return fmt.Errorf("gave up after %s: %w", timeout, err)
	}
	return ctx.Err()
}

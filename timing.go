package xtap

import (
	"bytes"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/trickstertwo/xclock"
)

// Timing is the timestamped record of one notification's lifetime.
// It moves from pending to completed exactly once.
type Timing struct {
	n         *Notification
	start     time.Time
	goroutine uint64
	clock     xclock.Clock
	done      atomic.Pointer[completion]
}

type completion struct {
	end time.Time
	err error
}

// NewTiming starts timing n on the calling goroutine.
func NewTiming(n *Notification, clock xclock.Clock) *Timing {
	if clock == nil {
		clock = xclock.Default()
	}
	return &Timing{
		n:         n,
		start:     clock.Now(),
		goroutine: goid(),
		clock:     clock,
	}
}

// End completes the timing without error.
func (t *Timing) End() error { return t.finish(nil) }

// Fail completes the timing with err.
func (t *Timing) Fail(err error) error { return t.finish(err) }

func (t *Timing) finish(err error) error {
	c := &completion{end: t.clock.Now(), err: err}
	if !t.done.CompareAndSwap(nil, c) {
		return ErrAlreadyCompleted
	}
	return nil
}

func (t *Timing) Notification() *Notification { return t.n }
func (t *Timing) Start() time.Time { return t.start }
func (t *Timing) Goroutine() uint64 { return t.goroutine }

// Done reports whether the timing has been completed.
func (t *Timing) Done() bool { return t.done.Load() != nil }

// EndTime is zero while pending.
func (t *Timing) EndTime() time.Time {
	if c := t.done.Load(); c != nil {
		return c.end
	}
	return time.Time{}
}

// Err is the failure the timing was completed with, if any.
func (t *Timing) Err() error {
	if c := t.done.Load(); c != nil {
		return c.err
	}
	return nil
}

// Duration is zero while pending.
func (t *Timing) Duration() time.Duration {
	if c := t.done.Load(); c != nil {
		return c.end.Sub(t.start)
	}
	return 0
}

// goid parses the current goroutine id out of the runtime stack header
// ("goroutine 42 [running]:").
func goid() uint64 {
	var buf [64]byte
	b := buf[:runtime.Stack(buf[:], false)]
	b = bytes.TrimPrefix(b, []byte("goroutine "))
	if i := bytes.IndexByte(b, ' '); i > 0 {
		b = b[:i]
	}
	id, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

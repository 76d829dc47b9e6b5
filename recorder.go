package xtap

import (
	"cmp"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/trickstertwo/xclock"
)

var _ Listener[*Timing] = (*Recorder)(nil)

// Recorder is the reference Listener. It keeps a Timing per notification in
// an append-only log per consumer for later analysis.
//
// An unbounded Recorder grows with every notification; use NewBoundedRecorder
// for long running pipelines.
type Recorder struct {
	NopListener[*Timing]

	clock xclock.Clock
	limit int
	logs  sync.Map // consumer identity -> *timeline
	seq   atomic.Uint64
	count atomic.Int64
}

type timeline struct {
	seq      uint64
	consumer any
	mu       sync.Mutex
	entries  []*Timing
	limit    int
}

func (tl *timeline) append(t *Timing) {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	if tl.limit > 0 && len(tl.entries) == tl.limit {
		copy(tl.entries, tl.entries[1:])
		tl.entries[len(tl.entries)-1] = t
		return
	}
	tl.entries = append(tl.entries, t)
}

func (tl *timeline) copyEntries() []*Timing {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	return slices.Clone(tl.entries)
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithClock sets the clock timings are taken from (default: xclock.Default()).
func WithClock(c xclock.Clock) RecorderOption {
	return func(r *Recorder) {
		if c != nil {
			r.clock = c
		}
	}
}

// WithLimit bounds each consumer's log to its most recent n timings.
func WithLimit(n int) RecorderOption {
	return func(r *Recorder) {
		if n > 0 {
			r.limit = n
		}
	}
}

func NewRecorder(opts ...RecorderOption) *Recorder {
	r := &Recorder{clock: xclock.Default()}
	for _, o := range opts {
		if o != nil {
			o(r)
		}
	}
	return r
}

// NewBoundedRecorder returns a Recorder whose per-consumer logs rotate,
// retaining the most recent limit timings.
func NewBoundedRecorder(limit int, opts ...RecorderOption) *Recorder {
	return NewRecorder(append(opts, WithLimit(limit))...)
}

// Start creates a Timing for n and appends it to the consumer's log.
func (r *Recorder) Start(n *Notification) *Timing {
	t := NewTiming(n, r.clock)
	r.timeline(n.Consumer()).append(t)
	return t
}

// Complete panics if t was already completed.
func (r *Recorder) Complete(t *Timing) {
	if err := t.End(); err != nil {
		panic(err)
	}
}

// Error panics if t was already completed.
func (r *Recorder) Error(t *Timing, err error) {
	if ferr := t.Fail(err); ferr != nil {
		panic(ferr)
	}
}

func (r *Recorder) timeline(consumer any) *timeline {
	if v, ok := r.logs.Load(consumer); ok {
		return v.(*timeline)
	}
	tl := &timeline{seq: r.seq.Add(1), consumer: consumer, limit: r.limit}
	v, loaded := r.logs.LoadOrStore(consumer, tl)
	if !loaded {
		r.count.Add(1)
	}
	return v.(*timeline)
}

// Consumers returns the number of consumers with a log.
func (r *Recorder) Consumers() int { return int(r.count.Load()) }

// Log returns a copy of one consumer's timings in start order.
func (r *Recorder) Log(consumer any) []*Timing {
	v, ok := r.logs.Load(Identity(consumer))
	if !ok {
		return nil
	}
	out := v.(*timeline).copyEntries()
	sortTimings(out)
	return out
}

// ConsumerLog is the ordered view of one consumer's timings.
type ConsumerLog struct {
	Consumer any
	Timings  []*Timing
}

// Snapshot copies the recorded logs into a deterministic order: consumers by
// the start of their earliest timing, timings by their own start. The live
// logs are not modified and recording may continue concurrently.
func (r *Recorder) Snapshot() []ConsumerLog {
	type entry struct {
		seq uint64
		log ConsumerLog
	}
	var entries []entry
	r.logs.Range(func(_, v any) bool {
		tl := v.(*timeline)
		ts := tl.copyEntries()
		if len(ts) == 0 {
			return true
		}
		sortTimings(ts)
		entries = append(entries, entry{seq: tl.seq, log: ConsumerLog{Consumer: tl.consumer, Timings: ts}})
		return true
	})
	slices.SortStableFunc(entries, func(a, b entry) int {
		if c := a.log.Timings[0].Start().Compare(b.log.Timings[0].Start()); c != 0 {
			return c
		}
		return cmp.Compare(a.seq, b.seq)
	})
	out := make([]ConsumerLog, len(entries))
	for i, e := range entries {
		out[i] = e.log
	}
	return out
}

// Reset drops all logs. Only call it while no pipeline is active.
func (r *Recorder) Reset() {
	r.logs.Clear()
	r.count.Store(0)
}

func sortTimings(ts []*Timing) {
	slices.SortStableFunc(ts, func(a, b *Timing) int {
		return a.Start().Compare(b.Start())
	})
}


package xtap_test

import (
	"fmt"
	"sync"

	"github.com/trickstertwo/xtap"
)

// trace is a shared, ordered call log for listeners and sinks under test.
type trace struct {
	mu    sync.Mutex
	lines []string
}

func (tr *trace) add(format string, args ...any) {
	tr.mu.Lock()
	tr.lines = append(tr.lines, fmt.Sprintf(format, args...))
	tr.mu.Unlock()
}

func (tr *trace) get() []string {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]string(nil), tr.lines...)
}

// probe is a Listener[string] that traces its hooks. The context token is
// the notification kind.
type probe struct {
	tr           *trace
	mu           sync.Mutex
	notes        []*xtap.Notification
	errs         []error
	substitute   func(v any) any
	panicOnError bool
}

func (p *probe) OnNext(n *xtap.Notification) any {
	if p.substitute != nil {
		return p.substitute(n.Value())
	}
	return n.Value()
}

func (p *probe) Start(n *xtap.Notification) string {
	p.mu.Lock()
	p.notes = append(p.notes, n)
	p.mu.Unlock()
	p.tr.add("start:%s", n.Kind())
	return string(n.Kind())
}

func (p *probe) Complete(ctx string) { p.tr.add("complete:%s", ctx) }

func (p *probe) Error(ctx string, err error) {
	p.mu.Lock()
	p.errs = append(p.errs, err)
	p.mu.Unlock()
	p.tr.add("error:%s", ctx)
	if p.panicOnError {
		panic("listener exploded")
	}
}

// sink is an xtap.Sink[int] whose calls can be made to fail or panic.
type sink struct {
	tr      *trace
	got     []int
	failOn  string
	err     error
	panicOn string
	panicV  any
}

func (s *sink) call(name string) error {
	if s.panicOn == name {
		panic(s.panicV)
	}
	if s.failOn == name {
		return s.err
	}
	return nil
}

func (s *sink) OnStart() error {
	s.tr.add("sink:start")
	return s.call("start")
}

func (s *sink) OnNext(v int) error {
	s.tr.add("sink:next %d", v)
	s.got = append(s.got, v)
	return s.call("next")
}

func (s *sink) OnError(err error) error {
	s.tr.add("sink:error %v", err)
	return s.call("error")
}

func (s *sink) OnCompleted() error {
	s.tr.add("sink:completed")
	return s.call("completed")
}

// demand records forwarded requests.
type demand struct{ tr *trace }

func (d demand) Request(n int64) error {
	d.tr.add("demand:%d", n)
	return nil
}

// resource runs its callbacks on every dispose call, like a careless host.
type resource struct{ fns []func() }

func (r *resource) OnDispose(fn func()) { r.fns = append(r.fns, fn) }

func (r *resource) dispose() {
	for _, fn := range r.fns {
		fn()
	}
}

func recovered(f func()) (r any) {
	defer func() { r = recover() }()
	f()
	return nil
}

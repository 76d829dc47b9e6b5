package flow

import (
	"fmt"
	"sync"
)

// Subscriber consumes a Flow. A non-nil error from OnNext fails the stream:
// the producing stage cancels and delivers it to OnError. Errors returned by
// OnError and OnCompleted are undeliverable and are logged by the Runtime.
type Subscriber[T any] interface {
	OnSubscribe(s Subscription) error
	OnNext(v T) error
	OnError(err error) error
	OnCompleted() error
}

// Flow is a cold stream: every Subscribe runs it from the start.
type Flow[T any] struct {
	rt   *Runtime
	name string
	run  func(s Subscriber[T])
}

func newFlow[T any](rt *Runtime, name string, run func(s Subscriber[T])) *Flow[T] {
	return &Flow[T]{rt: rt, name: name, run: run}
}

func (f *Flow[T]) String() string { return f.name }

// Runtime returns the runtime the flow was built from.
func (f *Flow[T]) Runtime() *Runtime { return f.rt }

// Subscribe starts the flow. The subscriber's OnSubscribe is called before
// any other callback; items arrive only as demand is requested.
func (f *Flow[T]) Subscribe(s Subscriber[T]) {
	f.run(tap(f.rt, s, f, nil, f))
}

// subscribeFrom attaches an operator stage to f.
func (f *Flow[T]) subscribeFrom(downstream any, s Subscriber[T]) {
	f.run(tap(f.rt, s, f, downstream, nil))
}

// Just emits values in order and completes.
func Just[T any](rt *Runtime, values ...T) *Flow[T] {
	return Fail[T](rt, nil, values...)
}

// Fail emits values in order and then fails with err. A nil err completes.
func Fail[T any](rt *Runtime, err error, values ...T) *Flow[T] {
	name := fmt.Sprintf("just(%d)", len(values))
	if err != nil {
		name = fmt.Sprintf("fail(%d)", len(values))
	}
	return newFlow(rt, name, func(s Subscriber[T]) {
		e := &emitter[T]{rt: rt, s: s, values: values, err: err}
		e.sub = newSubscription(e.request)
		if serr := s.OnSubscribe(e.sub); serr != nil {
			e.mu.Lock()
			e.done = true
			e.mu.Unlock()
			e.sub.dispose()
			rt.undeliverable(serr)
			return
		}
		// an empty source ends without demand
		e.request(0)
	})
}

// emitter replays a fixed slice against credit. Only one goroutine emits at a
// time; demand granted meanwhile is added to credit and drained by it.
type emitter[T any] struct {
	rt     *Runtime
	s      Subscriber[T]
	sub    *subscription
	values []T
	err    error

	mu       sync.Mutex
	idx      int
	credit   int64
	emitting bool
	done     bool
}

func (e *emitter[T]) request(n int64) {
	e.mu.Lock()
	e.credit = addCredit(e.credit, n)
	if e.emitting || e.done {
		e.mu.Unlock()
		return
	}
	e.emitting = true
	e.mu.Unlock()
	e.drain()
}

func (e *emitter[T]) drain() {
	for {
		if e.sub.isCancelled() {
			e.stop()
			return
		}
		e.mu.Lock()
		if e.idx == len(e.values) {
			e.done = true
			e.emitting = false
			e.mu.Unlock()
			e.finish(e.err)
			return
		}
		if e.credit == 0 {
			e.emitting = false
			e.mu.Unlock()
			return
		}
		v := e.values[e.idx]
		e.idx++
		e.credit = useCredit(e.credit)
		e.mu.Unlock()

		if err := e.s.OnNext(v); err != nil {
			e.mu.Lock()
			e.done = true
			e.emitting = false
			e.mu.Unlock()
			e.finish(err)
			return
		}
	}
}

func (e *emitter[T]) stop() {
	e.mu.Lock()
	e.done = true
	e.emitting = false
	e.mu.Unlock()
}

// finish delivers the terminal signal and disposes the subscription.
func (e *emitter[T]) finish(err error) {
	if err != nil {
		e.rt.undeliverable(e.s.OnError(err))
	} else {
		e.rt.undeliverable(e.s.OnCompleted())
	}
	e.sub.dispose()
}

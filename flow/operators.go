package flow

import (
	"sync"
)

// Map applies fn to every item of up.
func Map[T, U any](up *Flow[T], fn func(T) U) *Flow[U] {
	var f *Flow[U]
	f = newFlow(up.rt, "map", func(s Subscriber[U]) {
		up.subscribeFrom(f, &mapSubscriber[T, U]{down: s, fn: fn})
	})
	return f
}

// mapSubscriber shares the upstream subscription with its downstream.
type mapSubscriber[T, U any] struct {
	down Subscriber[U]
	fn   func(T) U
}

func (m *mapSubscriber[T, U]) OnSubscribe(s Subscription) error { return m.down.OnSubscribe(s) }
func (m *mapSubscriber[T, U]) OnNext(v T) error { return m.down.OnNext(m.fn(v)) }
func (m *mapSubscriber[T, U]) OnError(err error) error { return m.down.OnError(err) }
func (m *mapSubscriber[T, U]) OnCompleted() error { return m.down.OnCompleted() }

// FlatMap expands every item of up into the items fn returns, in order.
// Upstream is requested one item at a time, and only while the downstream
// has outstanding demand.
func FlatMap[T, U any](up *Flow[T], fn func(T) []U) *Flow[U] {
	var f *Flow[U]
	f = newFlow(up.rt, "flatMap", func(s Subscriber[U]) {
		m := &flatMapSubscriber[T, U]{rt: up.rt, down: s, fn: fn}
		up.subscribeFrom(f, m)
	})
	return f
}

type flatMapSubscriber[T, U any] struct {
	rt   *Runtime
	down Subscriber[U]
	fn   func(T) []U
	up   Subscription
	ds   *subscription

	mu       sync.Mutex
	queue    []U
	credit   int64
	pending  bool // an upstream item has been requested and not yet received
	upDone   bool
	upErr    error
	done     bool
	emitting bool
	missed   bool
}

func (m *flatMapSubscriber[T, U]) OnSubscribe(s Subscription) error {
	m.up = s
	m.ds = newSubscription(func(n int64) {
		m.mu.Lock()
		m.credit = addCredit(m.credit, n)
		m.mu.Unlock()
		m.drain()
	})
	m.ds.OnDispose(func() {
		m.mu.Lock()
		m.done = true
		m.mu.Unlock()
		s.Cancel()
	})
	if err := m.down.OnSubscribe(m.ds); err != nil {
		m.ds.dispose()
		return err
	}
	m.drain()
	return nil
}

func (m *flatMapSubscriber[T, U]) OnNext(v T) error {
	items := m.fn(v)
	m.mu.Lock()
	m.pending = false
	m.queue = append(m.queue, items...)
	m.mu.Unlock()
	m.drain()
	return nil
}

func (m *flatMapSubscriber[T, U]) OnError(err error) error {
	m.mu.Lock()
	m.upDone = true
	m.upErr = err
	m.queue = nil
	m.mu.Unlock()
	m.drain()
	return nil
}

func (m *flatMapSubscriber[T, U]) OnCompleted() error {
	m.mu.Lock()
	m.upDone = true
	m.mu.Unlock()
	m.drain()
	return nil
}

// drain is the only place items are delivered downstream. A call that finds
// another drain in progress leaves a note for it and returns.
func (m *flatMapSubscriber[T, U]) drain() {
	m.mu.Lock()
	if m.emitting {
		m.missed = true
		m.mu.Unlock()
		return
	}
	m.emitting = true
	for {
		m.missed = false
		switch {
		case m.done:
			m.emitting = false
			m.mu.Unlock()
			return
		case len(m.queue) > 0 && m.credit > 0:
			u := m.queue[0]
			m.queue = m.queue[1:]
			m.credit = useCredit(m.credit)
			m.mu.Unlock()
			if err := m.down.OnNext(u); err != nil {
				m.mu.Lock()
				m.done = true
				m.emitting = false
				m.mu.Unlock()
				m.up.Cancel()
				m.rt.undeliverable(m.down.OnError(err))
				m.ds.dispose()
				return
			}
			m.mu.Lock()
			m.missed = true
		case len(m.queue) == 0 && m.upDone:
			m.done = true
			m.emitting = false
			err := m.upErr
			m.mu.Unlock()
			if err != nil {
				m.rt.undeliverable(m.down.OnError(err))
			} else {
				m.rt.undeliverable(m.down.OnCompleted())
			}
			m.ds.dispose()
			return
		case len(m.queue) == 0 && m.credit > 0 && !m.pending:
			m.pending = true
			m.mu.Unlock()
			if err := m.up.Request(1); err != nil {
				m.rt.undeliverable(err)
			}
			m.mu.Lock()
			m.missed = true
		}
		if !m.missed {
			m.emitting = false
			m.mu.Unlock()
			return
		}
	}
}

// Take relays the first n items of up, then cancels up and completes.
// Downstream demand is capped so up is never asked for more than n.
func Take[T any](up *Flow[T], n int64) *Flow[T] {
	var f *Flow[T]
	f = newFlow(up.rt, "take", func(s Subscriber[T]) {
		up.subscribeFrom(f, &takeSubscriber[T]{rt: up.rt, down: s, limit: max(n, 0)})
	})
	return f
}

type takeSubscriber[T any] struct {
	rt    *Runtime
	down  Subscriber[T]
	limit int64
	up    Subscription
	ds    *subscription

	mu        sync.Mutex
	requested int64
	count     int64
	done      bool
}

func (t *takeSubscriber[T]) OnSubscribe(s Subscription) error {
	t.up = s
	t.ds = newSubscription(t.request)
	t.ds.OnDispose(s.Cancel)
	if err := t.down.OnSubscribe(t.ds); err != nil {
		t.ds.dispose()
		return err
	}
	if t.limit == 0 && t.markDone() {
		t.complete(nil)
	}
	return nil
}

func (t *takeSubscriber[T]) request(n int64) {
	t.mu.Lock()
	n = min(n, t.limit-t.requested)
	t.requested += n
	t.mu.Unlock()
	if n > 0 {
		if err := t.up.Request(n); err != nil {
			t.rt.undeliverable(err)
		}
	}
}

func (t *takeSubscriber[T]) OnNext(v T) error {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return nil
	}
	t.count++
	last := t.count == t.limit
	if last {
		t.done = true
	}
	t.mu.Unlock()

	if err := t.down.OnNext(v); err != nil {
		if !last {
			t.markDone()
		}
		t.complete(err)
		return nil
	}
	if last {
		t.complete(nil)
	}
	return nil
}

func (t *takeSubscriber[T]) OnError(err error) error {
	if t.markDone() {
		t.complete(err)
	}
	return nil
}

func (t *takeSubscriber[T]) OnCompleted() error {
	if t.markDone() {
		t.complete(nil)
	}
	return nil
}

func (t *takeSubscriber[T]) markDone() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	return true
}

// complete cancels upstream before the downstream sees the terminal signal.
func (t *takeSubscriber[T]) complete(err error) {
	t.up.Cancel()
	if err != nil {
		t.rt.undeliverable(t.down.OnError(err))
	} else {
		t.rt.undeliverable(t.down.OnCompleted())
	}
	t.ds.dispose()
}

package flow

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
)

// Discard returns a subscriber that requests everything and drops it.
func Discard[T any]() Subscriber[T] { return &discard[T]{} }

type discard[T any] struct{ received atomic.Int64 }

func (*discard[T]) OnSubscribe(s Subscription) error { return s.Request(math.MaxInt64) }

func (d *discard[T]) OnNext(T) error {
	d.received.Add(1)
	return nil
}

func (*discard[T]) OnError(error) error { return nil }
func (*discard[T]) OnCompleted() error { return nil }

// Collector gathers a flow's items, requesting them batch at a time.
type Collector[T any] struct {
	batch int64

	mu     sync.Mutex
	sub    Subscription
	values []T
	inFly  int64
	err    error
	done   chan struct{}
	once   sync.Once
}

// NewCollector returns a Collector that keeps at most batch items of demand
// outstanding. A batch below 1 requests everything at once.
func NewCollector[T any](batch int64) *Collector[T] {
	if batch < 1 {
		batch = math.MaxInt64
	}
	return &Collector[T]{batch: batch, done: make(chan struct{})}
}

func (c *Collector[T]) OnSubscribe(s Subscription) error {
	c.mu.Lock()
	c.sub = s
	c.inFly = c.batch
	c.mu.Unlock()
	return s.Request(c.batch)
}

func (c *Collector[T]) OnNext(v T) error {
	c.mu.Lock()
	c.values = append(c.values, v)
	refill := false
	if c.batch != math.MaxInt64 {
		c.inFly--
		if c.inFly == 0 {
			c.inFly = c.batch
			refill = true
		}
	}
	s := c.sub
	c.mu.Unlock()
	if refill {
		return s.Request(c.batch)
	}
	return nil
}

func (c *Collector[T]) OnError(err error) error {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
	c.once.Do(func() { close(c.done) })
	return nil
}

func (c *Collector[T]) OnCompleted() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

// Done is closed once the flow has terminated.
func (c *Collector[T]) Done() <-chan struct{} { return c.done }

// Values returns a copy of the items received so far.
func (c *Collector[T]) Values() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]T(nil), c.values...)
}

func (c *Collector[T]) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Wait blocks until the flow terminates or ctx is done. A flow that is still
// running when ctx ends is cancelled.
func (c *Collector[T]) Wait(ctx context.Context) ([]T, error) {
	select {
	case <-c.done:
		return c.Values(), c.Err()
	case <-ctx.Done():
		c.mu.Lock()
		s := c.sub
		c.mu.Unlock()
		if s != nil {
			s.Cancel()
		}
		return c.Values(), ctx.Err()
	}
}

// Collect subscribes to f and returns every item it emits.
func Collect[T any](ctx context.Context, f *Flow[T]) ([]T, error) {
	c := NewCollector[T](0)
	f.Subscribe(c)
	return c.Wait(ctx)
}

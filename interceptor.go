package xtap

import (
	"fmt"
	"sync"

	"github.com/trickstertwo/xlog"
)

var _ Sink[any] = (*Interceptor[any, any])(nil)
var _ Demand = (*Interceptor[any, any])(nil)
var _ Unwrappable = (*Interceptor[any, any])(nil)

// Interceptor sits between a pipeline stage and its real consumer and turns
// every lifecycle call into notify, forward, finalize.
//
// Failures of the real call are reported to the listener and returned (or
// re-panicked) unchanged. The interceptor never reorders, buffers or batches
// calls; it is as concurrent as its callers.
type Interceptor[T, C any] struct {
	listener Listener[C]
	actual   Sink[T]
	demand   Demand
	stages   Stages
	source   any
	logger   *xlog.Logger
	teardown sync.Once
}

// Wrap builds an Interceptor around actual. The host invokes the
// interceptor's lifecycle methods in place of actual's.
func Wrap[T, C any](l Listener[C], actual Sink[T], opts ...Option) *Interceptor[T, C] {
	var c config
	for _, o := range opts {
		if o != nil {
			o(&c)
		}
	}
	if c.stages.Upstream == nil && c.stages.Downstream == nil {
		// nested interceptor: keep the original reference chain
		if s, ok := actual.(interface{ Stages() Stages }); ok {
			c.stages = s.Stages()
		}
	}
	if c.logger == nil {
		c.logger = xlog.Default()
	}
	x := &Interceptor[T, C]{
		listener: l,
		actual:   actual,
		demand:   c.demand,
		stages:   c.stages,
		source:   c.source,
		logger:   c.logger,
	}
	if c.resource != nil {
		c.resource.OnDispose(x.Teardown)
	}
	return x
}

// Actual returns the wrapped consumer.
func (x *Interceptor[T, C]) Actual() any { return x.actual }

// Stages returns the adjacent stage references.
func (x *Interceptor[T, C]) Stages() Stages { return x.stages }

func (x *Interceptor[T, C]) OnStart() error {
	var n *Notification
	if x.source != nil {
		n = NewSubscribe(x.actual, x.stages, x.source)
	} else {
		n = NewOnStart(x.actual, x.stages)
	}
	return x.invoke(n, x.actual.OnStart)
}

// OnNext lets the listener substitute v before it is delivered downstream.
func (x *Interceptor[T, C]) OnNext(v T) error {
	n := NewOnNext(x.actual, x.stages, v)
	out := x.listener.OnNext(n)
	if out == nil {
		var zero T
		v = zero
	} else {
		sv, ok := out.(T)
		if !ok {
			panic(fmt.Errorf("%w: got %T for %T", ErrValueType, out, v))
		}
		v = sv
	}
	n = n.withValue(v)
	return x.invoke(n, func() error { return x.actual.OnNext(v) })
}

func (x *Interceptor[T, C]) OnError(err error) error {
	n := NewOnError(x.actual, x.stages, err)
	return x.invoke(n, func() error { return x.actual.OnError(err) })
}

func (x *Interceptor[T, C]) OnCompleted() error {
	n := NewOnCompleted(x.actual, x.stages)
	return x.invoke(n, x.actual.OnCompleted)
}

// Request forwards a demand of n items upstream. Without a configured
// Demand only the notification is emitted.
func (x *Interceptor[T, C]) Request(n int64) error {
	note := NewRequest(x.actual, x.stages, n)
	return x.invoke(note, func() error {
		if x.demand == nil {
			return nil
		}
		return x.demand.Request(n)
	})
}

// Teardown emits the Unsubscribe notification. Only the first call has an
// effect, however the stage ended.
func (x *Interceptor[T, C]) Teardown() {
	x.teardown.Do(func() {
		_ = x.invoke(NewUnsubscribe(x.actual, x.stages), func() error { return nil })
	})
}

func (x *Interceptor[T, C]) invoke(n *Notification, call func() error) error {
	ctx := x.listener.Start(n)
	if err := x.forward(n, ctx, call); err != nil {
		return err
	}
	x.listener.Complete(ctx)
	return nil
}

// forward runs the real call. Only a failure of the call itself reaches
// listener.Error; a panic is reported and then re-raised with its original value.
func (x *Interceptor[T, C]) forward(n *Notification, ctx C, call func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			x.fail(n, ctx, panicError(r))
			panic(r)
		}
	}()
	if err = call(); err != nil {
		x.fail(n, ctx, err)
	}
	return err
}

// fail reports a forwarded failure. A panic raised by the listener here is
// logged and dropped so it cannot replace the original failure.
func (x *Interceptor[T, C]) fail(n *Notification, ctx C, err error) {
	defer func() {
		if r := recover(); r != nil {
			x.logger.With(
				xlog.Str("kind", string(n.Kind())),
				xlog.Str("consumer", describe(n.Consumer())),
				xlog.Str("listener_panic", fmt.Sprint(r)),
			).Warn().Err(err).Msg("xtap: listener failed while handling a forwarded failure")
		}
	}()
	x.listener.Error(ctx, err)
}

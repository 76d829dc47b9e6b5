package xtap

import (
	"fmt"

	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"
)

// NopListener provides the default hooks. Embed it and override what you need.
type NopListener[C any] struct{}

// OnNext returns the notification's value unchanged.
func (NopListener[C]) OnNext(n *Notification) any { return n.Value() }

// Start returns the zero context.
func (NopListener[C]) Start(*Notification) C {
	var zero C
	return zero
}

func (NopListener[C]) Complete(C) {}
func (NopListener[C]) Error(C, error) {}

// Erase adapts a listener to Listener[any], the form a host engine accepts
// when it cannot be generic over the context type.
func Erase[C any](l Listener[C]) Listener[any] {
	if a, ok := any(l).(Listener[any]); ok {
		return a
	}
	return erased[C]{l: l}
}

type erased[C any] struct{ l Listener[C] }

func (e erased[C]) OnNext(n *Notification) any { return e.l.OnNext(n) }
func (e erased[C]) Start(n *Notification) any { return e.l.Start(n) }

func (e erased[C]) Complete(ctx any) { e.l.Complete(e.context(ctx)) }

func (e erased[C]) Error(ctx any, err error) { e.l.Error(e.context(ctx), err) }

// context panics when ctx was not produced by this listener's Start.
func (e erased[C]) context(ctx any) C {
	var zero C
	if ctx == nil {
		return zero
	}
	c, ok := ctx.(C)
	if !ok {
		panic(fmt.Errorf("%w: got %T for %T", ErrContextType, ctx, zero))
	}
	return c
}

// Multi fans every notification out to ls in order. OnNext substitutions
// are chained: each listener sees the value produced by the previous one.
func Multi(ls ...Listener[any]) Listener[any] {
	out := make(multi, 0, len(ls))
	for _, l := range ls {
		if l != nil {
			out = append(out, l)
		}
	}
	return out
}

type multi []Listener[any]

func (m multi) OnNext(n *Notification) any {
	v := n.Value()
	for _, l := range m {
		v = l.OnNext(n.withValue(v))
	}
	return v
}

// Start fails every context already started when a later listener panics,
// then re-raises the panic.
func (m multi) Start(n *Notification) any {
	ctxs := make([]any, len(m))
	started := make([]bool, len(m))
	r := m.each(func(i int, l Listener[any]) {
		ctxs[i] = l.Start(n)
		started[i] = true
	})
	if r != nil {
		err := panicError(r)
		m.each(func(i int, l Listener[any]) {
			if started[i] {
				l.Error(ctxs[i], err)
			}
		})
		panic(r)
	}
	return ctxs
}

func (m multi) Complete(ctx any) {
	ctxs, _ := ctx.([]any)
	if r := m.each(func(i int, l Listener[any]) { l.Complete(at(ctxs, i)) }); r != nil {
		panic(r)
	}
}

func (m multi) Error(ctx any, err error) {
	ctxs, _ := ctx.([]any)
	if r := m.each(func(i int, l Listener[any]) { l.Error(at(ctxs, i), err) }); r != nil {
		panic(r)
	}
}

// each calls fn for every listener even when some of them panic and returns
// the first recovered value.
func (m multi) each(fn func(int, Listener[any])) (first any) {
	for i, l := range m {
		func() {
			defer func() {
				if r := recover(); r != nil && first == nil {
					first = r
				}
			}()
			fn(i, l)
		}()
	}
	return first
}

func at(ctxs []any, i int) any {
	if i < len(ctxs) {
		return ctxs[i]
	}
	return nil
}

// LoggingListener is an Adapter that emits finished notifications via xlog.
type LoggingListener struct {
	NopListener[*Timing]
	Logger *xlog.Logger
	Clock  xclock.Clock
}

func (o LoggingListener) Start(n *Notification) *Timing {
	return NewTiming(n, o.Clock)
}

func (o LoggingListener) Complete(t *Timing) {
	if err := t.End(); err != nil {
		panic(err)
	}
	o.log(t)
}

func (o LoggingListener) Error(t *Timing, err error) {
	if ferr := t.Fail(err); ferr != nil {
		panic(ferr)
	}
	o.log(t)
}

func (o LoggingListener) log(t *Timing) {
	if o.Logger == nil {
		return
	}
	n := t.Notification()
	ev := o.Logger.With(
		xlog.Str("kind", string(n.Kind())),
		xlog.Str("consumer", describe(n.Consumer())),
		xlog.Dur("duration", t.Duration()),
	)
	switch n.Kind() {
	case OnNext:
		ev = ev.With(xlog.Str("value", describe(n.Value())))
	case OnError:
		ev = ev.With(xlog.Str("cause", errString(n.Err())))
	}
	if err := t.Err(); err != nil {
		ev.Warn().Err(err).Msg("xtap event failed")
		return
	}
	ev.Debug().Msg("xtap event")
}

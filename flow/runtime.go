package flow

import (
	"slices"

	"github.com/trickstertwo/xlog"

	"github.com/trickstertwo/xtap"
)

// Runtime holds the engine-wide hooks shared by every flow built from it.
type Runtime struct {
	listener xtap.Listener[any]
	logger   *xlog.Logger
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithListener intercepts every stage boundary and reports its lifecycle to l.
func WithListener(l xtap.Listener[any]) Option {
	return func(rt *Runtime) { rt.listener = l }
}

// WithLogger sets where undeliverable failures are reported (default: xlog.Default()).
func WithLogger(l *xlog.Logger) Option {
	return func(rt *Runtime) {
		if l != nil {
			rt.logger = l
		}
	}
}

func New(opts ...Option) *Runtime {
	rt := &Runtime{logger: xlog.Default()}
	for _, o := range opts {
		if o != nil {
			o(rt)
		}
	}
	return rt
}

// undeliverable reports a failure raised by a subscriber's terminal callback.
// The stream has already ended, so there is nobody left to propagate it to.
func (rt *Runtime) undeliverable(err error) {
	if err == nil {
		return
	}
	rt.logger.Warn().Err(err).Msg("flow: undeliverable failure")
}

// tap wraps s at the boundary between upstream and downstream. source is
// non-nil only for a subscription made from outside the engine.
func tap[T any](rt *Runtime, s Subscriber[T], upstream, downstream, source any) Subscriber[T] {
	if rt.listener == nil {
		return s
	}
	return &tapped[T]{
		rt:     rt,
		actual: s,
		opts: []xtap.Option{
			xtap.WithStages(upstream, downstream),
			xtap.WithSource(source),
			xtap.WithLogger(rt.logger),
		},
	}
}

// tapped routes a subscriber's lifecycle through an xtap.Interceptor. The
// interceptor is built at OnSubscribe, once the subscription it reports
// demand and teardown for is known.
type tapped[T any] struct {
	rt     *Runtime
	actual Subscriber[T]
	opts   []xtap.Option
	x      *xtap.Interceptor[T, any]
}

func (t *tapped[T]) Actual() any { return t.actual }

func (t *tapped[T]) OnSubscribe(sub Subscription) error {
	opts := append(slices.Clone(t.opts), xtap.WithDemand(sub))
	if r, ok := sub.(xtap.Resource); ok {
		opts = append(opts, xtap.WithResource(r))
	}
	proxy := &tappedSubscription{sub: sub}
	t.x = xtap.Wrap[T, any](t.rt.listener, &starter[T]{actual: t.actual, sub: proxy}, opts...)
	proxy.x = t.x
	return t.x.OnStart()
}

func (t *tapped[T]) OnNext(v T) error { return t.x.OnNext(v) }
func (t *tapped[T]) OnError(err error) error { return t.x.OnError(err) }
func (t *tapped[T]) OnCompleted() error { return t.x.OnCompleted() }

// starter adapts a Subscriber to xtap.Sink by binding the subscription
// handed out on OnStart.
type starter[T any] struct {
	actual Subscriber[T]
	sub    Subscription
}

func (s *starter[T]) Actual() any { return s.actual }
func (s *starter[T]) OnStart() error { return s.actual.OnSubscribe(s.sub) }
func (s *starter[T]) OnNext(v T) error { return s.actual.OnNext(v) }
func (s *starter[T]) OnError(err error) error { return s.actual.OnError(err) }
func (s *starter[T]) OnCompleted() error { return s.actual.OnCompleted() }

// tappedSubscription reports demand through the interceptor before it
// reaches the real subscription.
type tappedSubscription struct {
	sub Subscription
	x   interface{ Request(n int64) error }
}

func (p *tappedSubscription) Request(n int64) error {
	if n < 0 {
		return p.sub.Request(n)
	}
	return p.x.Request(n)
}
func (p *tappedSubscription) Cancel() { p.sub.Cancel() }

func (p *tappedSubscription) OnDispose(fn func()) {
	if r, ok := p.sub.(xtap.Resource); ok {
		r.OnDispose(fn)
	}
}

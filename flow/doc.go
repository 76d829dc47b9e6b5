// Package flow is a small push-based stream engine with credit-based demand.
//
// It is the host side of xtap: a Runtime built WithListener wraps the
// subscriber at every stage boundary in an xtap.Interceptor, threads the
// adjacent stages through for diagnostics and attaches the interceptor's
// teardown to the stage's Subscription.
//
// Emission is synchronous on the goroutine that grants demand. Requests made
// while a stage is already emitting are queued as credit and drained by the
// emitting call, so reentrant demand never recurses without bound.
//
//	rt := flow.New(flow.WithListener(xtap.Erase[*xtap.Timing](rec)))
//	flow.Take(flow.FlatMap(flow.Just(rt, 1, 3), pair), 3).Subscribe(flow.Discard[int]())
package flow

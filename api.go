package xtap

import "context"

// Sink is the consumer-facing lifecycle of a pipeline stage.
// A non-nil error is a failure raised by the stage and is propagated unchanged.
type Sink[T any] interface {
	OnStart() error
	OnNext(v T) error
	OnError(err error) error
	OnCompleted() error
}

// Demand is the upstream-facing credit channel of a stage.
type Demand interface {
	Request(n int64) error
}

// Resource is the host-managed disposal handle of a stage.
// Callbacks registered with OnDispose run once, when the stage is torn down.
type Resource interface {
	OnDispose(fn func())
}

// Listener receives every lifecycle notification crossing an intercepted
// stage boundary. C is the listener-chosen context token returned by Start
// and threaded to the matching Complete or Error.
//
// For every Start there is exactly one Complete or Error, never both.
// Complete and Error should not panic; such a panic cannot be reported further.
type Listener[C any] interface {
	// OnNext may decorate or replace the value about to be delivered.
	// The result must be assignable to the stage's element type.
	OnNext(n *Notification) any
	// Start is called once per notification, before the real call runs.
	Start(n *Notification) C
	// Complete is called after the real call returned normally.
	Complete(ctx C)
	// Error is called after the real call failed.
	Error(ctx C, err error)
}

// Unwrappable is implemented by consumer wrappers (safety wrappers, nested
// interceptors) so the original consumer can be recovered.
type Unwrappable interface {
	Actual() any
}

// Exporter is the Strategy for shipping finished records out of process.
type Exporter interface {
	Export(ctx context.Context, recs ...Record) error
	Close(ctx context.Context) error
}

// Codec is the Strategy for encoding records on the wire.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// Identity resolves the consumer a notification is grouped under by walking
// the Unwrappable chain down to the innermost consumer.
func Identity(c any) any {
	for {
		u, ok := c.(Unwrappable)
		if !ok {
			return c
		}
		inner := u.Actual()
		if inner == nil {
			return c
		}
		c = inner
	}
}

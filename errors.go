package xtap

import (
	"errors"
	"fmt"
)

// ErrProtocolViolation marks an internal invariant breach, such as completing
// a timing twice. It is a programming error, never a domain failure.
var ErrProtocolViolation = errors.New("xtap: protocol violation")

var (
	ErrAlreadyCompleted  = fmt.Errorf("%w: context already completed", ErrProtocolViolation)
	ErrNegativeDemand    = fmt.Errorf("%w: negative demand", ErrProtocolViolation)
	ErrValueType         = fmt.Errorf("%w: listener returned a value of the wrong type", ErrProtocolViolation)
	ErrContextType       = fmt.Errorf("%w: listener context of the wrong type", ErrProtocolViolation)
	ErrDispatcherTimeout = errors.New("xtap: dispatcher shutdown timeout")

	ErrNoListenerConfigured = errors.New("xtap: no listener configured")
)

type ErrUnknownExporter struct{ name string }

func (e ErrUnknownExporter) Error() string { return fmt.Sprintf("unknown exporter: %s", e.name) }

// PanicError carries a value recovered from a panicking stage call so it can
// be reported to a listener. The interceptor re-panics with Value afterwards.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string { return fmt.Sprintf("panic: %v", e.Value) }

// Unwrap exposes the panic value when it is itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

func panicError(r any) error {
	return &PanicError{Value: r}
}

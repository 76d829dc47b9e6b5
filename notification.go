package xtap

import (
	"fmt"
	"reflect"
	"strings"
)

// Kind enumerates the lifecycle occurrences at a stage boundary.
type Kind string

const (
	Subscribe   Kind = "subscribe"
	OnStart     Kind = "on_start"
	OnNext      Kind = "on_next"
	OnError     Kind = "on_error"
	OnCompleted Kind = "on_completed"
	Unsubscribe Kind = "unsubscribe"
	Request     Kind = "request"
)

// Terminal reports whether k ends the value stream of a consumer.
func (k Kind) Terminal() bool { return k == OnCompleted || k == OnError }

// Stages carries the stages adjacent to a boundary. Diagnostic only.
type Stages struct {
	Upstream   any
	Downstream any
}

// Notification is the immutable description of one lifecycle occurrence.
// Only the fields relevant to its Kind are populated.
type Notification struct {
	kind     Kind
	consumer any
	stages   Stages
	value    any
	err      error
	n        int64
	source   any
}

func newNotification(kind Kind, consumer any, st Stages) *Notification {
	return &Notification{kind: kind, consumer: Identity(consumer), stages: st}
}

// NewSubscribe describes a subscription to a pipeline originating at source.
func NewSubscribe(consumer any, st Stages, source any) *Notification {
	n := newNotification(Subscribe, consumer, st)
	n.source = source
	return n
}

func NewOnStart(consumer any, st Stages) *Notification {
	return newNotification(OnStart, consumer, st)
}

func NewOnNext(consumer any, st Stages, value any) *Notification {
	n := newNotification(OnNext, consumer, st)
	n.value = value
	return n
}

func NewOnError(consumer any, st Stages, err error) *Notification {
	n := newNotification(OnError, consumer, st)
	n.err = err
	return n
}

func NewOnCompleted(consumer any, st Stages) *Notification {
	return newNotification(OnCompleted, consumer, st)
}

func NewUnsubscribe(consumer any, st Stages) *Notification {
	return newNotification(Unsubscribe, consumer, st)
}

// NewRequest describes a demand of count items. A negative count panics.
func NewRequest(consumer any, st Stages, count int64) *Notification {
	if count < 0 {
		panic(fmt.Errorf("%w: %d", ErrNegativeDemand, count))
	}
	n := newNotification(Request, consumer, st)
	n.n = count
	return n
}

func (n *Notification) Kind() Kind { return n.kind }
func (n *Notification) Consumer() any { return n.consumer }
func (n *Notification) Upstream() any { return n.stages.Upstream }
func (n *Notification) Downstream() any { return n.stages.Downstream }
func (n *Notification) Value() any { return n.value }
func (n *Notification) Err() error { return n.err }
func (n *Notification) N() int64 { return n.n }
func (n *Notification) Source() any { return n.source }
func (n *Notification) Stages() Stages { return n.stages }

// withValue returns a copy carrying v; used after listener substitution.
func (n *Notification) withValue(v any) *Notification {
	cp := *n
	cp.value = v
	return &cp
}

func (n *Notification) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s consumer=%s", n.kind, describe(n.consumer))
	switch n.kind {
	case OnNext:
		fmt.Fprintf(&b, " value=%v", n.value)
	case OnError:
		fmt.Fprintf(&b, " err=%q", errString(n.err))
	case Request:
		fmt.Fprintf(&b, " n=%d", n.n)
	case Subscribe:
		if n.source != nil {
			fmt.Fprintf(&b, " source=%s", describe(n.source))
		}
	}
	if n.stages.Upstream != nil {
		fmt.Fprintf(&b, " from=%s", describe(n.stages.Upstream))
	}
	if n.stages.Downstream != nil {
		fmt.Fprintf(&b, " to=%s", describe(n.stages.Downstream))
	}
	return b.String()
}

// describe renders a reference as type@address for pointers and as its
// Stringer form otherwise.
func describe(v any) string {
	if v == nil {
		return "<nil>"
	}
	if s, ok := v.(fmt.Stringer); ok {
		return s.String()
	}
	if reflect.ValueOf(v).Kind() == reflect.Pointer {
		return fmt.Sprintf("%T@%p", v, v)
	}
	return fmt.Sprintf("%T(%v)", v, v)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

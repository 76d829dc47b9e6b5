package xtap

import (
	"fmt"
	"time"
)

// Record is the flattened, exportable form of a finished Timing.
type Record struct {
	// ID is a unique record identifier (exporter may assign if empty).
	ID string `json:"id,omitempty"`
	// RunID groups the records of one listener instance.
	RunID string `json:"run_id,omitempty"`

	Kind       Kind   `json:"kind"`
	Consumer   string `json:"consumer"`
	Upstream   string `json:"upstream,omitempty"`
	Downstream string `json:"downstream,omitempty"`
	Value      string `json:"value,omitempty"`
	Cause      string `json:"cause,omitempty"`
	N          int64  `json:"n,omitempty"`
	Source     string `json:"source,omitempty"`

	Goroutine uint64        `json:"goroutine"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
	// Err is the failure the intercepted call ended with.
	Err string `json:"err,omitempty"`
	// Metadata is a bag for tenancy/tracing tags added by exporters.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Record flattens t. References are rendered as type@address, values with fmt.
func (t *Timing) Record() Record {
	n := t.Notification()
	r := Record{
		Kind:      n.Kind(),
		Consumer:  describe(n.Consumer()),
		Goroutine: t.Goroutine(),
		StartedAt: t.Start(),
		Duration:  t.Duration(),
		Err:       errString(t.Err()),
	}
	if up := n.Upstream(); up != nil {
		r.Upstream = describe(up)
	}
	if down := n.Downstream(); down != nil {
		r.Downstream = describe(down)
	}
	switch n.Kind() {
	case OnNext:
		r.Value = fmt.Sprint(n.Value())
	case OnError:
		r.Cause = errString(n.Err())
	case Request:
		r.N = n.N()
	case Subscribe:
		if src := n.Source(); src != nil {
			r.Source = describe(src)
		}
	}
	return r
}
